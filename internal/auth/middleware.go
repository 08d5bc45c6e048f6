package auth

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hektorlabs/vdbgate/internal/apierror"
)

// Context keys for the authenticated identity.
const (
	subjectContextKey = "auth_subject"
	roleContextKey    = "auth_role"
)

// BearerMiddleware returns an echo middleware that requires a valid bearer
// token in the Authorization header. On success the authenticated subject
// and role are stored in the request context for downstream handlers.
//
// Failures never reach the handler or the engine: a missing or malformed
// header, a bad signature, and an expired token all resolve to 401 at this
// boundary.
func BearerMiddleware(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apierror.Unauthorized("missing authorization header", nil)
			}

			const prefix = "Bearer "
			if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
				return apierror.Unauthorized("authorization header must use the Bearer scheme", nil)
			}

			claims, err := tokens.Verify(header[len(prefix):])
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					return apierror.Unauthorized("token expired", err)
				}
				return apierror.Unauthorized("invalid token", err)
			}

			c.Set(subjectContextKey, claims.Subject)
			c.Set(roleContextKey, claims.Role)
			return next(c)
		}
	}
}

// Subject returns the authenticated username from the request context, or
// the empty string when the request is unauthenticated.
func Subject(c echo.Context) string {
	subject, _ := c.Get(subjectContextKey).(string)
	return subject
}

// Role returns the authenticated role from the request context.
func Role(c echo.Context) string {
	role, _ := c.Get(roleContextKey).(string)
	return role
}
