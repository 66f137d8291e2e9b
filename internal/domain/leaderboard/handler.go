package leaderboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/auth"
)

// Handler serves GET /leaderboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/leaderboard", h.Leaderboard, auth.RequireRole(auth.RoleAdmin, auth.RoleDirector))
}

func (h *Handler) Leaderboard(c echo.Context) error {
	entries, err := h.svc.Leaderboard(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, entries)
}
