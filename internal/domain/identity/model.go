package identity

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleDirector Role = "DIRECTOR"
	RoleManager  Role = "MANAGER"
)

// User is a read-only snapshot of an application account.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	HospitalID *string   `json:"hospitalId,omitempty"`
	Roles      []Role    `json:"roles"`
	Active     bool      `json:"active"`
}

// NormalizeEmail is the stored form of an account email. Lookups and
// upserts both go through it so one mailbox maps to one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// PrimaryRole picks the most privileged role: ADMIN, then DIRECTOR, else
// MANAGER. A user with no recognised role is treated as a MANAGER.
func (u *User) PrimaryRole() Role {
	switch {
	case u.HasRole(RoleAdmin):
		return RoleAdmin
	case u.HasRole(RoleDirector):
		return RoleDirector
	default:
		return RoleManager
	}
}

// AssignedHospital returns the hospital id the user is attached to, if any.
func (u *User) AssignedHospital() (string, bool) {
	if u.HospitalID == nil || strings.TrimSpace(*u.HospitalID) == "" {
		return "", false
	}
	return *u.HospitalID, true
}

// ParseRoles converts stored role names, ignoring blanks and case.
func ParseRoles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n != "" {
			out = append(out, Role(n))
		}
	}
	return out
}

func roleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
