package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/auth"
)

// IdentityLocalKey is the fiber.Ctx locals key holding the verified identity.
const IdentityLocalKey = "identity"

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Auth requires a valid bearer token. A missing token answers 401; a token
// that is malformed, expired or wrongly signed answers 403.
func Auth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		ident, err := v.Verify(c.UserContext(), token)
		switch {
		case err == nil:
			c.Locals(IdentityLocalKey, ident)
			return c.Next()
		case errors.Is(err, auth.ErrTokenMissing):
			return fiber.NewError(fiber.StatusUnauthorized, "no token provided")
		case errors.Is(err, auth.ErrTokenExpired):
			return fiber.NewError(fiber.StatusForbidden, "token expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			return fiber.NewError(fiber.StatusForbidden, "invalid token")
		default:
			return err
		}
	}
}

// When returns h if enabled and a pass-through handler otherwise.
func When(enabled bool, h fiber.Handler) fiber.Handler {
	if enabled {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *fiber.Ctx) (auth.Identity, bool) {
	ident, ok := c.Locals(IdentityLocalKey).(auth.Identity)
	return ident, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
