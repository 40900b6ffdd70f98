package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

type stubCatalogService struct {
	createFn   func(ctx context.Context, input services.ProductInput) (domain.Product, error)
	updateFn   func(ctx context.Context, productID string, input services.ProductInput) (domain.Product, error)
	getFn      func(ctx context.Context, productID string) (domain.Product, error)
	listFn     func(ctx context.Context, query services.ProductListQuery) (domain.CursorPage[domain.Product], error)
	setStockFn func(ctx context.Context, productID string, stock int64) (domain.Product, error)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, input services.ProductInput) (domain.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, productID string, input services.ProductInput) (domain.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, productID, input)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductListQuery) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubCatalogService) SetStock(ctx context.Context, productID string, stock int64) (domain.Product, error) {
	if s.setStockFn != nil {
		return s.setStockFn(ctx, productID, stock)
	}
	return domain.Product{}, nil
}

func sampleProduct() domain.Product {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	return domain.Product{
		ID:        "prd_1",
		Name:      "Cotton Kurta",
		SKU:       "KRT-001",
		Price:     500,
		Stock:     10,
		Sizes:     []string{"S", "M", "L"},
		Image:     "https://img.example/kurta.jpg",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newProductsServer(t *testing.T, catalog services.CatalogService) *httptest.Server {
	t.Helper()
	h := NewProductHandlers(catalog)
	router := chi.NewRouter()
	router.Route("/products", h.Routes)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestProductHandlersListActiveOnly(t *testing.T) {
	var captured services.ProductListQuery
	catalog := &stubCatalogService{
		listFn: func(_ context.Context, query services.ProductListQuery) (domain.CursorPage[domain.Product], error) {
			captured = query
			return domain.CursorPage[domain.Product]{
				Items:         []domain.Product{sampleProduct()},
				NextPageToken: "tok-2",
			}, nil
		},
	}

	server := newProductsServer(t, catalog)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/products/?page_size=10&page_token=tok-1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if !captured.ActiveOnly {
		t.Error("public listing must be active-only")
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != "tok-1" {
		t.Errorf("unexpected pagination %#v", captured.Pagination)
	}

	items, _ := payload["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one product, got %v", payload)
	}
	product, _ := items[0].(map[string]any)
	if product["sku"] != "KRT-001" || product["price"] != float64(500) {
		t.Errorf("unexpected product %v", product)
	}
	if payload["next_page_token"] != "tok-2" {
		t.Errorf("unexpected token %v", payload["next_page_token"])
	}
}

func TestProductHandlersListRejectsBadPagination(t *testing.T) {
	server := newProductsServer(t, &stubCatalogService{})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/products/?page_size=abc", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
}

func TestProductHandlersGetProduct(t *testing.T) {
	catalog := &stubCatalogService{
		getFn: func(_ context.Context, productID string) (domain.Product, error) {
			if productID != "prd_1" {
				t.Errorf("unexpected id %s", productID)
			}
			return sampleProduct(), nil
		},
	}

	server := newProductsServer(t, catalog)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/products/prd_1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	product, _ := payload["product"].(map[string]any)
	if product["id"] != "prd_1" || product["name"] != "Cotton Kurta" {
		t.Errorf("unexpected product %v", product)
	}
}

func TestProductHandlersHidesInactiveProduct(t *testing.T) {
	catalog := &stubCatalogService{
		getFn: func(context.Context, string) (domain.Product, error) {
			product := sampleProduct()
			product.Active = false
			return product, nil
		},
	}

	server := newProductsServer(t, catalog)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/products/prd_1", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected hidden inactive product, got %d: %v", resp.StatusCode, payload)
	}
	if payload["error"] != "product_not_found" {
		t.Errorf("unexpected error code %v", payload["error"])
	}
}

func TestProductHandlersGetProductNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		getFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, services.ErrCatalogNotFound
		},
	}

	server := newProductsServer(t, catalog)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/products/prd_missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
}
