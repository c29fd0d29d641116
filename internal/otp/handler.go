package otp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/notification"
)

var validate = validator.New()

// Handler exposes the login and verify endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs the one-time-code HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Role       string `json:"role"`
}

type loginResponse struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	UserExists bool   `json:"user_exists"`
}

type verifyRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Code       string `json:"code" validate:"required"`
	Role       string `json:"role"`
}

type verifyResponse struct {
	Account identity.AccountView `json:"account"`
	Created bool                 `json:"created"`
	Tokens  auth.TokenPair       `json:"tokens"`
}

// Login sends a one-time code to the phone number or email in the body.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, "identifier is required")
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil {
		return mapError(err)
	}

	res, err := h.svc.Send(c.UserContext(), strings.TrimSpace(req.Identifier), role)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Identifier: res.Identifier.Value,
		Kind:       string(res.Identifier.Kind),
		UserExists: res.UserExisted,
	})
}

// Verify exchanges a valid code for session tokens.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, "identifier and code are required")
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil {
		return mapError(err)
	}

	res, err := h.svc.Verify(c.UserContext(), strings.TrimSpace(req.Identifier), strings.TrimSpace(req.Code), role)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(verifyResponse{
		Account: identity.View(res.Account),
		Created: res.Created,
		Tokens:  res.Tokens,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidIdentifier):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, "identifier must be an Uzbek or Russian phone number or an email address")
	case errors.Is(err, identity.ErrInvalidRole):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, "role must be driver or master")
	case errors.Is(err, ErrMalformedCode):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, err.Error())
	case errors.Is(err, ErrExpiredOrMissing):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindExpiredOrMissing, "code expired or was not requested")
	case errors.Is(err, ErrInvalidCode):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindInvalidCode, "invalid code")
	case errors.Is(err, notification.ErrGateway):
		return apperror.Wrap(err, http.StatusBadGateway, apperror.KindGateway, "failed to deliver code")
	default:
		return err
	}
}
