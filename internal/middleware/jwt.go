package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fitnow/fitnow-api/internal/auth"
)

// ContextUserID is the echo.Context key holding the authenticated user id
// as a uint64.
const ContextUserID = "user_id"

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's user id in the request context under ContextUserID.
// The provided secret must match the one used by the identity service.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			uid, err := auth.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ContextUserID, uid)
			return next(c)
		}
	}
}

// UserID returns the id stored by JWTAuth, or false when the request is
// anonymous.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(ContextUserID).(uint64)
	return uid, ok && uid != 0
}
