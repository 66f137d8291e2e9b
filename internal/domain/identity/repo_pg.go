package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var roles []string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, email, full_name, hospital_id, roles, active
		FROM app_user WHERE lower(email) = $1`, NormalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.FullName, &u.HospitalID, &roles, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	u.Roles = ParseRoles(roles)
	return &u, nil
}

func (r *repoPG) Upsert(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO app_user (id, email, full_name, hospital_id, roles, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			hospital_id = EXCLUDED.hospital_id,
			roles = EXCLUDED.roles,
			active = EXCLUDED.active
		RETURNING id`,
		u.ID, u.Email, u.FullName, u.HospitalID, roleNames(u.Roles), u.Active,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Email, err)
	}
	return nil
}
