package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/auth"
)

// Handler serves the dashboard summary for the authenticated user.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard/summary", h.Summary, auth.RequireRole(auth.RoleAdmin, auth.RoleDirector, auth.RoleManager))
}

// Summary builds the view for the authenticated subject.
func (h *Handler) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Summary(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
