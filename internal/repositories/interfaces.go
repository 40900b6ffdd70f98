package repositories

import (
	"context"

	domain "github.com/vastrakart/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StockDecrement describes one conditional stock mutation within a batch.
type StockDecrement struct {
	ProductID string
	Qty       int64
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

// ProductRepository persists catalog items and owns the conditional stock mutations.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// FindManyActiveByIDs returns only documents that exist and are active;
	// callers detect missing products by comparing result size to input size.
	FindManyActiveByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	// DecrementStockBatch applies every decrement in one transaction or none of
	// them. Failure surfaces the first offending line as *InsufficientStockError.
	DecrementStockBatch(ctx context.Context, decs []StockDecrement) error
	// IncrementStockBatch restores quantities, used for cancellations and
	// compensating a failed order insert.
	IncrementStockBatch(ctx context.Context, incs []StockDecrement) error
	SetStock(ctx context.Context, productID string, stock int64) error
}

// OrderListFilter narrows order listings for a user or admin view.
type OrderListFilter struct {
	UserID     string
	Status     domain.OrderStatus
	Pagination domain.Pagination
}

// OrderRepository persists order documents and the order-number uniqueness guard.
type OrderRepository interface {
	// Insert writes the order and claims its order number in one transaction,
	// clearing the user's cart alongside when clearCart is set. A previously
	// claimed number surfaces as a conflict RepositoryError.
	Insert(ctx context.Context, order domain.Order, clearCart bool) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// CartRepository owns the per-user cart document.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// CounterConfig captures optional counter settings.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CounterRepository issues monotonically increasing values per counter document.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// WebhookEventRepository records processed gateway events for redelivery dedup.
type WebhookEventRepository interface {
	// MarkProcessed claims the event id; a replay surfaces as a conflict
	// RepositoryError so callers can acknowledge without reprocessing.
	MarkProcessed(ctx context.Context, event domain.WebhookEvent) error
}
