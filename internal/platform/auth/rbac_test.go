package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(t *testing.T, granted []string, required ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, granted))
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required []string
		allowed  bool
	}{
		{"exact match", []string{RoleDirector}, []string{RoleAdmin, RoleDirector}, true},
		{"admin satisfies anything", []string{RoleAdmin}, []string{RoleManager}, true},
		{"manager denied director route", []string{RoleManager}, []string{RoleDirector}, false},
		{"no roles", nil, []string{RoleManager}, false},
		{"one of several", []string{"AUDITOR", RoleManager}, []string{RoleDirector, RoleManager}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithRoles(t, tt.granted, tt.required...)
			if tt.allowed && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.allowed {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != http.StatusForbidden {
					t.Errorf("expected 403, got %v", err)
				}
			}
		})
	}
}

func TestNormalizeRoles(t *testing.T) {
	got := normalizeRoles([]string{" admin ", "ROLE_manager", "", "Director"})
	want := []string{RoleAdmin, RoleManager, RoleDirector}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
