package kpi

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const seriesCols = `id, hospital_id, department, metric, unit, target, created_at, updated_at`

func scanSeries(row pgx.Row) (Series, error) {
	var s Series
	var target decimal.NullDecimal
	err := row.Scan(&s.ID, &s.Key.HospitalID, &s.Key.Department, &s.Key.Metric, &s.Unit, &target, &s.CreatedAt, &s.UpdatedAt)
	if target.Valid {
		t := target.Decimal
		s.Target = &t
	}
	return s, err
}

// load reads the series matching where and attaches their points.
func (r *repoPG) load(ctx context.Context, q db.Querier, where string, args ...any) ([]Series, error) {
	rows, err := q.Query(ctx, `SELECT `+seriesCols+` FROM kpi_series `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	var out []Series
	index := map[uuid.UUID]int{}
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan series: %w", err)
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	prows, err := q.Query(ctx, `
		SELECT series_id, recorded_at, value, note, submitted_by
		FROM kpi_point WHERE series_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var sid uuid.UUID
		var p Point
		var note *string
		if err := prows.Scan(&sid, &p.Timestamp, &p.Value, &note, &p.SubmittedBy); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if note != nil {
			p.Note = *note
		}
		p.Timestamp = p.Timestamp.UTC()
		i := index[sid]
		out[i].History = append(out[i].History, p)
	}
	return out, prows.Err()
}

func (r *repoPG) List(ctx context.Context, hospitalID string) ([]Series, error) {
	if hospitalID == "" {
		return r.load(ctx, db.Conn(ctx, r.pool), "")
	}
	return r.load(ctx, db.Conn(ctx, r.pool), "WHERE hospital_id = $1", hospitalID)
}

func (r *repoPG) GetByKey(ctx context.Context, key Key) (*Series, error) {
	list, err := r.load(ctx, db.Conn(ctx, r.pool),
		"WHERE hospital_id = $1 AND department = $2 AND metric = $3",
		key.HospitalID, key.Department, key.Metric)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("kpi series", key.String())
	}
	return &list[0], nil
}

func (r *repoPG) Append(ctx context.Context, key Key, unit string, target *decimal.Decimal, p Point) (*Series, error) {
	var result *Series
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)

		var id uuid.UUID
		err := q.QueryRow(ctx, `
			INSERT INTO kpi_series (id, hospital_id, department, metric, unit, target)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT ON CONSTRAINT kpi_series_key DO UPDATE SET
				unit = EXCLUDED.unit,
				target = EXCLUDED.target,
				updated_at = NOW()
			RETURNING id`,
			uuid.New(), key.HospitalID, key.Department, key.Metric, unit, nullDecimal(target),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert series %s: %w", key, err)
		}

		if _, err := q.Exec(ctx, `
			INSERT INTO kpi_point (series_id, recorded_at, value, note, submitted_by)
			VALUES ($1, $2, $3, $4, $5)`,
			id, p.Timestamp, p.Value, nullString(p.Note), p.SubmittedBy,
		); err != nil {
			return fmt.Errorf("append point to %s: %w", key, err)
		}

		list, err := r.load(ctx, q, "WHERE id = $1", id)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return errors.New("series vanished after upsert")
		}
		result = &list[0]
		return nil
	})
	return result, err
}

func (r *repoPG) Count(ctx context.Context, hospitalID string) (int, error) {
	var n int
	var err error
	if hospitalID == "" {
		err = db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM kpi_series`).Scan(&n)
	} else {
		err = db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM kpi_series WHERE hospital_id = $1`, hospitalID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count series: %w", err)
	}
	return n, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
