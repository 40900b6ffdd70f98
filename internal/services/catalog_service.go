package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

const productIDPrefix = "prd_"

var (
	// ErrCatalogInvalidInput signals the caller provided invalid product data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product could not be located.
	ErrCatalogNotFound = errors.New("catalog: product not found")
	// ErrCatalogConflict indicates a duplicate product write.
	ErrCatalogConflict = errors.New("catalog: conflict")
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	now := s.clock()
	product := domain.Product{
		ID:        productIDPrefix + s.newID(),
		Name:      strings.TrimSpace(input.Name),
		SKU:       strings.TrimSpace(input.SKU),
		Price:     input.Price,
		Stock:     input.Stock,
		Sizes:     normalizeSizes(input.Sizes),
		Image:     strings.TrimSpace(input.Image),
		Active:    input.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.products.Insert(ctx, product)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": inserted.ID,
		"sku":       inserted.SKU,
	})
	return inserted, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}

	product.Name = strings.TrimSpace(input.Name)
	product.SKU = strings.TrimSpace(input.SKU)
	product.Price = input.Price
	product.Stock = input.Stock
	product.Sizes = normalizeSizes(input.Sizes)
	product.Image = strings.TrimSpace(input.Image)
	product.Active = input.Active
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductListQuery) (domain.CursorPage[domain.Product], error) {
	page, err := s.products.List(ctx, repositories.ProductListFilter{
		ActiveOnly: query.ActiveOnly,
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) SetStock(ctx context.Context, productID string, stock int64) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must be >= 0", ErrCatalogInvalidInput)
	}

	if err := s.products.SetStock(ctx, productID, stock); err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "catalog.product.stock.set", map[string]any{
		"productId": productID,
		"stock":     stock,
	})
	return product, nil
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}
	return err
}

func validateProductInput(input ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(input.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if input.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrCatalogInvalidInput)
	}
	if input.Stock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", ErrCatalogInvalidInput)
	}
	return nil
}

func normalizeSizes(sizes []string) []string {
	normalized := make([]string, 0, len(sizes))
	seen := make(map[string]bool, len(sizes))
	for _, size := range sizes {
		size = strings.ToUpper(strings.TrimSpace(size))
		if size == "" || seen[size] {
			continue
		}
		seen[size] = true
		normalized = append(normalized, size)
	}
	return normalized
}
