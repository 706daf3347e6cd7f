package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIContentSecurityPolicy is the default policy for JSON responses.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// DocumentContentSecurityPolicy allows the inline styles of rendered HTML
// documents. Handlers serving them override the default header.
const DocumentContentSecurityPolicy = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'"

// SecurityHeaders sets the response headers every API response carries.
// Patient data must never be cached by intermediaries.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", APIContentSecurityPolicy)
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
