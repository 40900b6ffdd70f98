package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
)

const cartsCollection = "carts"

// CartRepository persists the per-user cart document, keyed by user id.
type CartRepository struct {
	base     *pfirestore.BaseRepository[domain.Cart]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Cart](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

// Get fetches the user's cart. A missing document is an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart get: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: userID}, nil
		}
		return domain.Cart{}, err
	}
	cart := doc.Data
	cart.UserID = doc.ID
	return cart, nil
}

// ReplaceItems overwrites the cart's item list.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart replace: user id is required")
	}
	if items == nil {
		items = []domain.CartItem{}
	}

	cart := domain.Cart{
		UserID:    userID,
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.base.Set(ctx, userID, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// Clear empties the cart without deleting the document.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart clear: user id is required")
	}

	ref, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"items":     []domain.CartItem{},
		"updatedAt": time.Now().UTC(),
	}
	if tx, ok := pfirestore.TxFrom(ctx); ok {
		return pfirestore.WrapError("carts.clear", tx.Set(ref, payload, firestore.MergeAll))
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}
