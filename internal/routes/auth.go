package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/otp"
)

// AuthLimits are optional rate limiters for the public auth endpoints.
type AuthLimits struct {
	Login  fiber.Handler
	Verify fiber.Handler
}

// RegisterAuthRoutes wires the public authentication endpoints. Logout needs a
// session and is registered with the protected group.
func RegisterAuthRoutes(r fiber.Router, challenges *otp.Handler, sessions *auth.Handler, limits AuthLimits) {
	group := r.Group("/auth")
	group.Post("/login", withLimit(limits.Login, challenges.Login)...)
	group.Post("/verify", withLimit(limits.Verify, challenges.Verify)...)
	group.Post("/refresh", sessions.Refresh)
}

func withLimit(limit, h fiber.Handler) []fiber.Handler {
	if limit == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{limit, h}
}
