package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notesync/internal/apierror"
)

// BearerToken returns a middleware that rejects requests not carrying the given token.
// An empty token disables the check.
func BearerToken(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if expected == "" {
			return next
		}

		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(echo.HeaderAuthorization)
			token := token(authorization)

			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				return apierror.NewWithTagCode(http.StatusUnauthorized, "invalid-auth", "Invalid credentials.")
			}
			return next(c)
		}
	}
}

func token(authorization string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	return strings.TrimSpace(authorization[len(prefix):])
}
