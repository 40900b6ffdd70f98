package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	maxCartLines   = 50
	maxCartLineQty = 99
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductUnavailable indicates a cart line references a product that
	// does not exist or is no longer active.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
)

// CartItemInput is a single requested cart line.
type CartItemInput struct {
	ProductID string
	Qty       int64
	Size      string
}

// CartService owns the stored shopping cart for each user.
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	ReplaceCart(ctx context.Context, userID string, items []CartItemInput) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.Get(ctx, userID)
}

func (s *cartService) ReplaceCart(ctx context.Context, userID string, items []CartItemInput) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if len(items) > maxCartLines {
		return domain.Cart{}, fmt.Errorf("%w: cart exceeds %d lines", ErrCartInvalidInput, maxCartLines)
	}

	lines := make([]domain.CartItem, 0, len(items))
	ids := make([]string, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
		}
		if item.Qty <= 0 || item.Qty > maxCartLineQty {
			return domain.Cart{}, fmt.Errorf("%w: qty for %s must be between 1 and %d", ErrCartInvalidInput, productID, maxCartLineQty)
		}

		size := strings.ToUpper(strings.TrimSpace(item.Size))
		key := productID + "|" + size
		if idx, ok := seen[key]; ok {
			lines[idx].Qty += item.Qty
			continue
		}
		seen[key] = len(lines)
		lines = append(lines, domain.CartItem{
			ProductID: productID,
			Qty:       item.Qty,
			Size:      size,
		})
		ids = append(ids, productID)
	}

	if len(ids) > 0 {
		available, err := s.products.FindManyActiveByIDs(ctx, ids)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("cart: resolve products: %w", err)
		}
		byID := make(map[string]domain.Product, len(available))
		for _, product := range available {
			byID[product.ID] = product
		}
		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok {
				return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, line.ProductID)
			}
			if line.Size != "" && !cartSizeOffered(product.Sizes, line.Size) {
				return domain.Cart{}, fmt.Errorf("%w: size %s not offered for %s", ErrCartInvalidInput, line.Size, line.ProductID)
			}
		}
	}

	cart, err := s.carts.ReplaceItems(ctx, userID, lines)
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger(ctx, "cart.replaced", map[string]any{
		"userId": userID,
		"lines":  len(lines),
	})
	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.Clear(ctx, userID)
}

func cartSizeOffered(sizes []string, size string) bool {
	for _, offered := range sizes {
		if strings.EqualFold(offered, size) {
			return true
		}
	}
	return false
}
