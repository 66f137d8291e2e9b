package insights

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/auth"
)

// Handler exposes the /ai and /ml-gateway routes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(auth.RoleAdmin, auth.RoleDirector, auth.RoleManager)
	api.GET("/ai/anomalies", h.Anomalies, read)
	api.GET("/ai/predictions", h.Predictions, read)
	api.GET("/ai/recommendations", h.Recommendations, read)

	ops := auth.RequireRole(auth.RoleAdmin, auth.RoleDirector)
	api.GET("/ai/federated-status", h.FederatedStatus, ops)
	api.GET("/ml-gateway", h.GatewayStatus, ops)
}

func (h *Handler) Anomalies(c echo.Context) error {
	out, err := h.svc.Anomalies(c.Request().Context(), c.QueryParam("hospitalId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Predictions(c echo.Context) error {
	out, err := h.svc.Predictions(c.Request().Context(), c.QueryParam("hospitalId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Recommendations(c echo.Context) error {
	out, err := h.svc.Recommendations(c.Request().Context(), c.QueryParam("hospitalId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) FederatedStatus(c echo.Context) error {
	out, err := h.svc.FederatedStatus(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GatewayStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.GatewayStatus())
}
