package kpi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/auth"
)

// Handler serves the /kpis routes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/kpis", h.Submit, auth.RequireRole(auth.RoleAdmin, auth.RoleManager))
	api.GET("/kpis/history/:hospitalId", h.History, auth.RequireRole(auth.RoleAdmin, auth.RoleDirector, auth.RoleManager))
	api.GET("/kpis/:hospitalId/:department/:metric", h.Series, auth.RequireRole(auth.RoleAdmin, auth.RoleDirector, auth.RoleManager))
}

func (h *Handler) Submit(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.svc.Submit(c.Request().Context(), sub, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) History(c echo.Context) error {
	views, err := h.svc.History(c.Request().Context(), c.Param("hospitalId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) Series(c echo.Context) error {
	var key Key
	for _, p := range []struct {
		name string
		dst  *string
	}{{"hospitalId", &key.HospitalID}, {"department", &key.Department}, {"metric", &key.Metric}} {
		v, err := url.PathUnescape(c.Param(p.name))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = v
	}
	view, err := h.svc.Series(c.Request().Context(), key)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, view)
}
