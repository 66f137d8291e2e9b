package kpi

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the series store. Every method returns freshly allocated
// snapshots.
type Repository interface {
	// List returns every series, or only those of hospitalID when it is
	// non-empty, each with its full history.
	List(ctx context.Context, hospitalID string) ([]Series, error)
	// GetByKey returns apperr.NotFound for an unknown key.
	GetByKey(ctx context.Context, key Key) (*Series, error)
	// Append atomically creates or updates the series for key, overwriting
	// unit and target, and appends p to its history.
	Append(ctx context.Context, key Key, unit string, target *decimal.Decimal, p Point) (*Series, error)
	// Count returns the number of series, optionally for one hospital.
	Count(ctx context.Context, hospitalID string) (int, error)
}
