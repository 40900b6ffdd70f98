package repositories

import "fmt"

// InsufficientStockError reports a conditional stock decrement that would have
// driven a product's stock negative. Available reflects the level observed in
// the failed transaction attempt.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
