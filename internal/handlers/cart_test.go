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

type stubCartService struct {
	getFn     func(ctx context.Context, userID string) (domain.Cart, error)
	replaceFn func(ctx context.Context, userID string, items []services.CartItemInput) (domain.Cart, error)
	clearFn   func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.Cart{UserID: userID}, nil
}

func (s *stubCartService) ReplaceCart(ctx context.Context, userID string, items []services.CartItemInput) (domain.Cart, error) {
	if s.replaceFn != nil {
		return s.replaceFn(ctx, userID, items)
	}
	return domain.Cart{UserID: userID}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

func newCartServer(t *testing.T, carts services.CartService) *httptest.Server {
	t.Helper()
	h := NewCartHandlers(newTestAuthenticator(t, "user-1"), carts)
	router := chi.NewRouter()
	router.Route("/cart", h.Routes)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestCartHandlersGetCart(t *testing.T) {
	carts := &stubCartService{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID:    userID,
				Items:     []domain.CartItem{{ProductID: "prd_1", Qty: 2, Size: "M"}},
				UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	server := newCartServer(t, carts)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/cart/", "tok", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}

	cart, _ := payload["cart"].(map[string]any)
	if cart["userId"] != "user-1" {
		t.Errorf("unexpected user %v", cart["userId"])
	}
	items, _ := cart["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one item, got %v", cart)
	}
	item, _ := items[0].(map[string]any)
	if item["productId"] != "prd_1" || item["qty"] != float64(2) || item["size"] != "M" {
		t.Errorf("unexpected item %v", item)
	}
}

func TestCartHandlersReplaceCart(t *testing.T) {
	var captured []services.CartItemInput
	carts := &stubCartService{
		replaceFn: func(_ context.Context, userID string, items []services.CartItemInput) (domain.Cart, error) {
			captured = items
			out := make([]domain.CartItem, 0, len(items))
			for _, item := range items {
				out = append(out, domain.CartItem{ProductID: item.ProductID, Qty: item.Qty, Size: item.Size})
			}
			return domain.Cart{UserID: userID, Items: out}, nil
		},
	}

	server := newCartServer(t, carts)

	resp, payload := doJSON(t, http.MethodPut, server.URL+"/cart/", "tok", map[string]any{
		"items": []map[string]any{
			{"productId": " prd_1 ", "qty": 3, "size": " M "},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if len(captured) != 1 {
		t.Fatalf("unexpected items %#v", captured)
	}
	if captured[0].ProductID != "prd_1" || captured[0].Size != "M" {
		t.Errorf("expected trimmed fields, got %#v", captured[0])
	}
}

func TestCartHandlersReplaceCartInvalidInput(t *testing.T) {
	carts := &stubCartService{
		replaceFn: func(context.Context, string, []services.CartItemInput) (domain.Cart, error) {
			return domain.Cart{}, services.ErrCartInvalidInput
		},
	}

	server := newCartServer(t, carts)

	resp, payload := doJSON(t, http.MethodPut, server.URL+"/cart/", "tok", map[string]any{
		"items": []map[string]any{{"productId": "prd_1", "qty": 0}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if payload["error"] != "invalid_request" {
		t.Errorf("unexpected error code %v", payload["error"])
	}
}

func TestCartHandlersReplaceCartUnavailableProduct(t *testing.T) {
	carts := &stubCartService{
		replaceFn: func(context.Context, string, []services.CartItemInput) (domain.Cart, error) {
			return domain.Cart{}, services.ErrCartProductUnavailable
		},
	}

	server := newCartServer(t, carts)

	resp, payload := doJSON(t, http.MethodPut, server.URL+"/cart/", "tok", map[string]any{
		"items": []map[string]any{{"productId": "prd_gone", "qty": 1}},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d: %v", resp.StatusCode, payload)
	}
	if payload["error"] != "product_unavailable" {
		t.Errorf("unexpected error code %v", payload["error"])
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := ""
	carts := &stubCartService{
		clearFn: func(_ context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}

	server := newCartServer(t, carts)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/cart/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if cleared != "user-1" {
		t.Errorf("unexpected cleared user %q", cleared)
	}
}

func TestCartHandlersRequireAuth(t *testing.T) {
	server := newCartServer(t, &stubCartService{})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/cart/", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", resp.StatusCode)
	}
}
