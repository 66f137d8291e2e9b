package hospital

import (
	"context"
	"errors"
	"fmt"

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

const hospitalCols = `id, name, code, city, country, federated_state, created_at, updated_at`

func scanHospital(row pgx.Row) (Hospital, error) {
	var h Hospital
	var state string
	err := row.Scan(&h.ID, &h.Name, &h.Code, &h.City, &h.Country, &state, &h.CreatedAt, &h.UpdatedAt)
	h.FederatedState = FederatedState(state)
	return h, err
}

func (r *repoPG) List(ctx context.Context) ([]Hospital, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+hospitalCols+` FROM hospital ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	var out []Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Hospital, error) {
	h, err := scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+hospitalCols+` FROM hospital WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("hospital", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get hospital: %w", err)
	}
	return &h, nil
}

func (r *repoPG) Upsert(ctx context.Context, h *Hospital) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO hospital (id, name, code, city, country, federated_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			code = EXCLUDED.code,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			federated_state = EXCLUDED.federated_state,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		h.ID, h.Name, h.Code, h.City, h.Country, string(h.FederatedState),
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert hospital %s: %w", h.ID, err)
	}
	return nil
}
