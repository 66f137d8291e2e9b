package hospital

import "context"

// Repository is the hospital registry.
type Repository interface {
	List(ctx context.Context) ([]Hospital, error)
	// GetByID returns apperr.NotFound when no hospital has id.
	GetByID(ctx context.Context, id string) (*Hospital, error)
	Upsert(ctx context.Context, h *Hospital) error
}
