package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/identity"
)

// RegisterIdentityRoutes wires the caller's profile.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
}
