package firestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository implements repositories.ProductRepository on Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Product](provider, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, products: base}, nil
}

// Insert creates the product document, failing on id collisions.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product insert: id is required")
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	ref, err := r.products.DocumentRef(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if _, err := ref.Create(ctx, product); err != nil {
		return domain.Product{}, pfirestore.WrapError("products.insert", err)
	}
	return product, nil
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product update: id is required")
	}
	product.UpdatedAt = time.Now().UTC()
	_, err := r.products.Set(ctx, product.ID, product)
	return err
}

// FindByID fetches a single product regardless of its active flag.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product find: id is required")
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// FindManyActiveByIDs resolves the given ids in one batch read, silently
// dropping documents that are missing or inactive.
func (r *ProductRepository) FindManyActiveByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		refs = append(refs, client.Collection(productsCollection).Doc(id))
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.findMany", err)
	}

	products := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var product domain.Product
		if err := snap.DataTo(&product); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		if !product.Active {
			continue
		}
		product.ID = snap.Ref.ID
		products = append(products, product)
	}
	return products, nil
}

// DecrementStockBatch conditionally decrements every listed product's stock in
// a single transaction. All reads happen before the first write; any line with
// insufficient stock aborts the whole batch.
func (r *ProductRepository) DecrementStockBatch(ctx context.Context, decs []repositories.StockDecrement) error {
	return r.mutateStockBatch(ctx, "products.decrementStock", decs, func(id string, stock, qty int64) (int64, error) {
		if stock < qty {
			return 0, &repositories.InsufficientStockError{ProductID: id, Requested: qty, Available: stock}
		}
		return stock - qty, nil
	})
}

// IncrementStockBatch restores quantities after a cancellation or a failed
// order insert. The same all-or-nothing transaction shape as decrement.
func (r *ProductRepository) IncrementStockBatch(ctx context.Context, incs []repositories.StockDecrement) error {
	return r.mutateStockBatch(ctx, "products.incrementStock", incs, func(_ string, stock, qty int64) (int64, error) {
		return stock + qty, nil
	})
}

func (r *ProductRepository) mutateStockBatch(ctx context.Context, op string, lines []repositories.StockDecrement, apply func(id string, stock, qty int64) (int64, error)) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if len(lines) == 0 {
		return nil
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%s: product id is required", op)
		}
		if line.Qty <= 0 {
			return fmt.Errorf("%s: qty for %s must be > 0", op, line.ProductID)
		}
	}

	run := func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()

		refs := make([]*firestore.DocumentRef, len(lines))
		for i, line := range lines {
			ref, err := r.products.DocumentRef(ctx, strings.TrimSpace(line.ProductID))
			if err != nil {
				return err
			}
			refs[i] = ref
		}

		// Firestore rejects reads after the first write in a transaction,
		// so collect every new stock level before writing any of them.
		newStocks := make([]int64, len(lines))
		for i, ref := range refs {
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return pfirestore.WrapError(op, err)
				}
				return err
			}
			var product domain.Product
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", ref.ID, err)
			}
			next, err := apply(ref.ID, product.Stock, lines[i].Qty)
			if err != nil {
				return err
			}
			newStocks[i] = next
		}

		for i, ref := range refs {
			err := tx.Update(ref, []firestore.Update{
				{Path: "stock", Value: newStocks[i]},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx, ok := pfirestore.TxFrom(ctx); ok {
		err = run(ctx, tx)
	} else {
		err = r.provider.RunTransaction(ctx, run)
	}
	if err != nil {
		var stockErr *repositories.InsufficientStockError
		if errors.As(err, &stockErr) {
			return stockErr
		}
		return pfirestore.WrapError(op, err)
	}
	return nil
}

// SetStock overwrites the absolute stock level for a product.
func (r *ProductRepository) SetStock(ctx context.Context, productID string, stock int64) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.New("product set stock: id is required")
	}
	if stock < 0 {
		return errors.New("product set stock: stock must be >= 0")
	}

	_, err := r.products.Update(ctx, productID, []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// List returns a page of products ordered by creation time, newest first.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	query := client.Collection(productsCollection).Query
	if filter.ActiveOnly {
		query = query.Where("active", "==", true)
	}
	query = query.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := decodeProductPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var product domain.Product
		if err := snap.DataTo(&product); err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		product.ID = snap.Ref.ID
		products = append(products, product)
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeProductPageToken(productPageToken{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

type productPageToken struct {
	ID        string
	CreatedAt time.Time
}

func encodeProductPageToken(token productPageToken) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(token); err != nil {
		return "", fmt.Errorf("encode product page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes.TrimSpace(buf.Bytes())), nil
}

func decodeProductPageToken(encoded string) (*productPageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode product page token: %w", err)
	}
	var token productPageToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode product page token json: %w", err)
	}
	return &token, nil
}
