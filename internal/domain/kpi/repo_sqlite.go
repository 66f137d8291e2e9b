package kpi

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

// repoSQLite stores decimals as TEXT and serializes writers on the single
// connection OpenSQLite configures.
type repoSQLite struct {
	store *db.SQLite
}

func NewRepoSQLite(s *db.SQLite) Repository {
	return &repoSQLite{store: s}
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *repoSQLite) load(ctx context.Context, q sqlQuerier, where string, args ...any) ([]Series, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+seriesCols+` FROM kpi_series `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	var out []Series
	index := map[string]int{}
	for rows.Next() {
		var s Series
		var id string
		var target sql.NullString
		if err := rows.Scan(&id, &s.Key.HospitalID, &s.Key.Department, &s.Key.Metric, &s.Unit, &target, &s.CreatedAt, &s.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan series: %w", err)
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse series id %q: %w", id, err)
		}
		if target.Valid {
			t, err := decimal.NewFromString(target.String)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("parse target of %s: %w", id, err)
			}
			s.Target = &t
		}
		index[id] = len(out)
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(out))
	ids := make([]any, len(out))
	for i := range out {
		placeholders[i] = "?"
		ids[i] = out[i].ID.String()
	}
	prows, err := q.QueryContext(ctx, `
		SELECT series_id, recorded_at, value, note, submitted_by
		FROM kpi_point WHERE series_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY seq`, ids...)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var sid, value string
		var note sql.NullString
		var p Point
		if err := prows.Scan(&sid, &p.Timestamp, &value, &note, &p.SubmittedBy); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if p.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parse point value %q: %w", value, err)
		}
		p.Note = note.String
		p.Timestamp = p.Timestamp.UTC()
		i := index[sid]
		out[i].History = append(out[i].History, p)
	}
	return out, prows.Err()
}

func (r *repoSQLite) List(ctx context.Context, hospitalID string) ([]Series, error) {
	if hospitalID == "" {
		return r.load(ctx, r.store.DB, "")
	}
	return r.load(ctx, r.store.DB, "WHERE hospital_id = ?", hospitalID)
}

func (r *repoSQLite) GetByKey(ctx context.Context, key Key) (*Series, error) {
	list, err := r.load(ctx, r.store.DB,
		"WHERE hospital_id = ? AND department = ? AND metric = ?",
		key.HospitalID, key.Department, key.Metric)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("kpi series", key.String())
	}
	return &list[0], nil
}

func (r *repoSQLite) Append(ctx context.Context, key Key, unit string, target *decimal.Decimal, p Point) (*Series, error) {
	var result *Series
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		var targetText any
		if target != nil {
			targetText = target.String()
		}
		now := time.Now().UTC()

		var id string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO kpi_series (id, hospital_id, department, metric, unit, target, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (hospital_id, department, metric) DO UPDATE SET
				unit = excluded.unit,
				target = excluded.target,
				updated_at = excluded.updated_at
			RETURNING id`,
			uuid.NewString(), key.HospitalID, key.Department, key.Metric, unit, targetText, now, now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert series %s: %w", key, err)
		}

		var note any
		if p.Note != "" {
			note = p.Note
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kpi_point (series_id, recorded_at, value, note, submitted_by)
			VALUES (?, ?, ?, ?, ?)`,
			id, p.Timestamp.UTC(), p.Value.String(), note, p.SubmittedBy,
		); err != nil {
			return fmt.Errorf("append point to %s: %w", key, err)
		}

		list, err := r.load(ctx, tx, "WHERE id = ?", id)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("series %s vanished after upsert", id)
		}
		result = &list[0]
		return nil
	})
	return result, err
}

func (r *repoSQLite) Count(ctx context.Context, hospitalID string) (int, error) {
	var n int
	var err error
	if hospitalID == "" {
		err = r.store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kpi_series`).Scan(&n)
	} else {
		err = r.store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kpi_series WHERE hospital_id = ?`, hospitalID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count series: %w", err)
	}
	return n, nil
}
