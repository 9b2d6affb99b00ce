package middleware

import (
	"github.com/labstack/echo/v4"
)

// ResponseHeaders returns an Echo middleware that marks every response as
// non-sniffable and non-cacheable. Envelopes describe a single live fetch.
func ResponseHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderCacheControl, "no-store")
			return next(c)
		}
	}
}
