package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders hardens the JSON API. Responses under apiPrefix are
// per-caller and never stored; /health is revalidated on every use.
func SecurityHeaders(apiPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			switch path := c.Request().URL.Path; {
			case strings.HasPrefix(path, apiPrefix):
				h.Set("Cache-Control", "no-store, private")
				h.Add("Vary", "Authorization")
			case path == "/health":
				h.Set("Cache-Control", "no-cache")
			}
			return next(c)
		}
	}
}
