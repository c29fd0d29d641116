package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/funding"
)

// RegisterFundingRoutes wires balance lookup and card top-ups. Top-ups go
// through the idempotency middleware and are not mounted when it is nil.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, idempotency fiber.Handler) {
	group := r.Group("/balance")
	group.Get("/", h.Balance)
	if idempotency != nil {
		group.Post("/topup", idempotency, h.TopUp)
	}
}
