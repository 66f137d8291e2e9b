package hospital

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

type repoSQLite struct {
	db *sql.DB
}

func NewRepoSQLite(s *db.SQLite) Repository {
	return &repoSQLite{db: s.DB}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHospitalSQL(row rowScanner) (Hospital, error) {
	var h Hospital
	var state string
	err := row.Scan(&h.ID, &h.Name, &h.Code, &h.City, &h.Country, &state, &h.CreatedAt, &h.UpdatedAt)
	h.FederatedState = FederatedState(state)
	return h, err
}

func (r *repoSQLite) List(ctx context.Context) ([]Hospital, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+hospitalCols+` FROM hospital ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	var out []Hospital
	for rows.Next() {
		h, err := scanHospitalSQL(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repoSQLite) GetByID(ctx context.Context, id string) (*Hospital, error) {
	h, err := scanHospitalSQL(r.db.QueryRowContext(ctx, `SELECT `+hospitalCols+` FROM hospital WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("hospital", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get hospital: %w", err)
	}
	return &h, nil
}

func (r *repoSQLite) Upsert(ctx context.Context, h *Hospital) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hospital (id, name, code, city, country, federated_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			city = excluded.city,
			country = excluded.country,
			federated_state = excluded.federated_state,
			updated_at = excluded.updated_at`,
		h.ID, h.Name, h.Code, h.City, h.Country, string(h.FederatedState), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert hospital %s: %w", h.ID, err)
	}
	return r.db.QueryRowContext(ctx, `SELECT created_at, updated_at FROM hospital WHERE id = ?`, h.ID).
		Scan(&h.CreatedAt, &h.UpdatedAt)
}
