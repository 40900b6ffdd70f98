package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

// WithTx stores an active transaction on the context so repositories invoked
// inside a unit of work participate in the same transaction.
func WithTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFrom retrieves the active transaction from the context when present.
func TxFrom(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// UnitOfWork groups repository mutations into a single Firestore transaction.
// The callback receives a context carrying the transaction; repositories built
// on this package detect it and route reads and writes through it.
type UnitOfWork struct {
	provider *Provider
}

// NewUnitOfWork constructs a UnitOfWork over the shared provider.
func NewUnitOfWork(provider *Provider) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &UnitOfWork{provider: provider}, nil
}

// RunInTransaction executes fn atomically. Firestore requires every read to
// happen before the first write inside the transaction; callers must order
// repository calls accordingly.
func (u *UnitOfWork) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	if u == nil || u.provider == nil {
		return errors.New("firestore: unit of work is not initialised")
	}
	if fn == nil {
		return errors.New("firestore: transaction function is nil")
	}
	if _, ok := TxFrom(ctx); ok {
		// Already inside a unit of work; join it instead of nesting.
		return fn(ctx)
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(WithTx(txCtx, tx))
	}, opts...)
}

// RunInTx executes fn atomically with default transaction options. It exists
// so the unit of work satisfies the repositories.UnitOfWork interface.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.RunInTransaction(ctx, fn)
}
