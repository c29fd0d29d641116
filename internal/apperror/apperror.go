// Package apperror carries machine-readable failure kinds to the HTTP layer.
package apperror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Kind identifies a class of failure in response bodies.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindExpiredOrMissing  Kind = "expired_or_missing"
	KindInvalidCode       Kind = "invalid_code"
	KindGateway           Kind = "gateway_error"
	KindAlreadyAssigned   Kind = "already_assigned"
	KindOrderExpired      Kind = "order_expired"
	KindBelowMinimum      Kind = "below_minimum_balance"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindOrderNotPending   Kind = "order_not_pending"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindDeclined          Kind = "card_declined"
	KindInternal          Kind = "internal"
)

// Error is a failure with an HTTP status and a stable kind.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(status int, kind Kind, message string) *Error {
	return &Error{Status: status, Kind: kind, Message: message}
}

// Wrap builds an Error that keeps err for logging.
func Wrap(err error, status int, kind Kind, message string) *Error {
	return &Error{Status: status, Kind: kind, Message: message, Err: err}
}

// BadRequest is shorthand for a validation failure.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message)
}

type body struct {
	Error detail `json:"error"`
}

type detail struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Handler renders every error returned by a route as a JSON body.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := detail{Kind: KindInternal, Message: "internal server error"}
		status := http.StatusInternalServerError

		var appErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			resp.Kind = appErr.Kind
			resp.Message = appErr.Message
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			resp.Kind = kindForStatus(fiberErr.Code)
			resp.Message = fiberErr.Message
		}

		if id, ok := c.Locals("X-Request-ID").(string); ok {
			resp.RequestID = id
		}
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(status).JSON(body{Error: resp})
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindGateway
	default:
		return KindInternal
	}
}
