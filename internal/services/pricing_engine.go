package services

import (
	"errors"
	"fmt"

	domain "github.com/vastrakart/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals bad pricing data such as missing items or negative prices.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// PricingConfig holds the tunable rates for the pricing engine.
// Amounts are whole rupees; the tax rate is expressed in basis points.
type PricingConfig struct {
	TaxRateBasisPoints    int64
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// DefaultPricingConfig returns the storefront's standard rates: 18% GST,
// free shipping above 1000, flat fee of 100 at and below it.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		TaxRateBasisPoints:    1800,
		FreeShippingThreshold: 1000,
		FlatShippingFee:       100,
	}
}

// PricingEngine computes order totals from line item snapshots. It is pure:
// no clock, no store, no I/O, so identical inputs always price identically.
type PricingEngine struct {
	cfg PricingConfig
}

// NewPricingEngine constructs a PricingEngine, filling unset rates from defaults.
func NewPricingEngine(cfg PricingConfig) (*PricingEngine, error) {
	defaults := DefaultPricingConfig()
	if cfg.TaxRateBasisPoints == 0 {
		cfg.TaxRateBasisPoints = defaults.TaxRateBasisPoints
	}
	if cfg.FreeShippingThreshold == 0 {
		cfg.FreeShippingThreshold = defaults.FreeShippingThreshold
	}
	if cfg.FlatShippingFee == 0 {
		cfg.FlatShippingFee = defaults.FlatShippingFee
	}
	if cfg.TaxRateBasisPoints < 0 || cfg.FreeShippingThreshold < 0 || cfg.FlatShippingFee < 0 {
		return nil, fmt.Errorf("%w: pricing rates must be >= 0", ErrPricingInvalidInput)
	}
	return &PricingEngine{cfg: cfg}, nil
}

// Price computes the full breakdown for the given line items and optional
// coupon. The discount can at most zero the total, never make it negative.
func (e *PricingEngine) Price(items []domain.OrderLineItem, coupon *domain.Coupon) (domain.PricingBreakdown, error) {
	if e == nil {
		return domain.PricingBreakdown{}, errors.New("pricing: engine is nil")
	}
	if len(items) == 0 {
		return domain.PricingBreakdown{}, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}

	var subtotal int64
	for i, item := range items {
		if item.UnitPrice < 0 {
			return domain.PricingBreakdown{}, fmt.Errorf("%w: item %d has negative unit price", ErrPricingInvalidInput, i)
		}
		if item.Qty <= 0 {
			return domain.PricingBreakdown{}, fmt.Errorf("%w: item %d has non-positive quantity", ErrPricingInvalidInput, i)
		}
		subtotal += item.UnitPrice * item.Qty
	}

	tax := roundHalfUpBasisPoints(subtotal, e.cfg.TaxRateBasisPoints)

	// Free shipping kicks in strictly above the threshold.
	var shipping int64
	if subtotal <= e.cfg.FreeShippingThreshold {
		shipping = e.cfg.FlatShippingFee
	}

	var discount int64
	if coupon != nil {
		if coupon.Discount < 0 {
			return domain.PricingBreakdown{}, fmt.Errorf("%w: coupon discount must be >= 0", ErrPricingInvalidInput)
		}
		switch coupon.Type {
		case domain.CouponTypePercentage:
			if coupon.Discount > 100 {
				return domain.PricingBreakdown{}, fmt.Errorf("%w: percentage coupon must be <= 100", ErrPricingInvalidInput)
			}
			discount = roundHalfUpPercent(subtotal, coupon.Discount)
		case domain.CouponTypeFixed, "":
			discount = coupon.Discount
		default:
			return domain.PricingBreakdown{}, fmt.Errorf("%w: unknown coupon type %q", ErrPricingInvalidInput, coupon.Type)
		}
	}

	total := subtotal + tax + shipping - discount
	if total < 0 {
		// A discount larger than the order zeroes it; the surplus is forfeit.
		discount = subtotal + tax + shipping
		total = 0
	}

	return domain.PricingBreakdown{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Discount:     discount,
		Total:        total,
	}, nil
}

// roundHalfUpBasisPoints applies rate/10000 to amount, rounding half away
// from zero. Amounts are non-negative in practice.
func roundHalfUpBasisPoints(amount, rate int64) int64 {
	return (amount*rate + 5000) / 10000
}

// roundHalfUpPercent applies pct/100 to amount, rounding half away from zero.
func roundHalfUpPercent(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}
