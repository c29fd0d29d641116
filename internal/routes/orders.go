package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/acceptance"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/middleware"
	"github.com/check8auto/check8auto/internal/orders"
)

// RegisterOrderRoutes wires the order lifecycle and acceptance endpoints.
func RegisterOrderRoutes(r fiber.Router, h *orders.Handler, accept *acceptance.Handler) {
	group := r.Group("/orders")
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Get("/:id", h.Get)
	group.Post("/:id/status", h.UpdateStatus)
	group.Post("/:id/accept", middleware.RequireRole(identity.RoleMaster), accept.Accept)
}
