package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
)

// Handler exposes the token refresh and logout endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new token pair using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if req.RefreshToken == "" {
		return apperror.BadRequest("refresh_token is required")
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.UserContext(), account.ID); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return apperror.Wrap(err, http.StatusUnauthorized, apperror.KindUnauthorized, "invalid token")
	case errors.Is(err, ErrTokenRevoked):
		return apperror.Wrap(err, http.StatusUnauthorized, apperror.KindUnauthorized, "token invalidated")
	default:
		return err
	}
}
