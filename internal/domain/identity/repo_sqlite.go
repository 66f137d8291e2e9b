package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/db"
)

// Roles are stored as comma separated text in sqlite.
type repoSQLite struct {
	db *sql.DB
}

func NewRepoSQLite(s *db.SQLite) Repository {
	return &repoSQLite{db: s.DB}
}

func (r *repoSQLite) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var id, roles string
	var hospitalID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, hospital_id, roles, active
		FROM app_user WHERE lower(email) = ?`, NormalizeEmail(email),
	).Scan(&id, &u.Email, &u.FullName, &hospitalID, &roles, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", id, err)
	}
	if hospitalID.Valid {
		u.HospitalID = &hospitalID.String
	}
	u.Roles = ParseRoles(strings.Split(roles, ","))
	return &u, nil
}

func (r *repoSQLite) Upsert(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var hospitalID any
	if u.HospitalID != nil {
		hospitalID = *u.HospitalID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_user (id, email, full_name, hospital_id, roles, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			full_name = excluded.full_name,
			hospital_id = excluded.hospital_id,
			roles = excluded.roles,
			active = excluded.active`,
		u.ID.String(), u.Email, u.FullName, hospitalID, strings.Join(roleNames(u.Roles), ","), u.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Email, err)
	}
	var id string
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM app_user WHERE email = ?`, u.Email).Scan(&id); err != nil {
		return fmt.Errorf("reload user %s: %w", u.Email, err)
	}
	u.ID, err = uuid.Parse(id)
	return err
}
