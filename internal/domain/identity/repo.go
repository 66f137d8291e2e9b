package identity

import "context"

// Repository stores application accounts keyed by email.
type Repository interface {
	// GetByEmail returns apperr.NotFound when no account matches.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Upsert stores u keyed by its normalized email and sets u.ID to the
	// stored account's id.
	Upsert(ctx context.Context, u *User) error
}
