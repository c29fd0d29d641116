package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/identity"
)

// JWTAuth validates bearer access tokens and stores the account on the request.
// Tokens minted before the account's last logout are rejected.
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return apperror.New(http.StatusUnauthorized, apperror.KindUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("bearer "):])

		account, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return apperror.Wrap(err, http.StatusUnauthorized, apperror.KindUnauthorized, "invalid token")
		}

		identity.SetCurrent(c, account)
		return c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not one of roles.
func RequireRole(roles ...identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, err := identity.Current(c)
		if err != nil {
			return err
		}
		for _, r := range roles {
			if account.Role == r {
				return c.Next()
			}
		}
		return apperror.New(http.StatusForbidden, apperror.KindForbidden, "role not allowed")
	}
}
