package middleware

// identity.go exposes the caller identity that JWTAuth stored on the Echo
// context.  Every accessor returns "" when the value is absent, so handlers
// can tell an anonymous request apart with a single check.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string { return ctxString(c, ctxUserID) }

// Role returns the role claim of the caller.
func Role(c echo.Context) string { return ctxString(c, ctxRole) }

// Email returns the email claim of the caller, used as the booking's
// contact address.
func Email(c echo.Context) string { return ctxString(c, ctxEmail) }

func ctxString(c echo.Context, key string) string {
	if s, ok := c.Get(key).(string); ok {
		return s
	}
	return ""
}
