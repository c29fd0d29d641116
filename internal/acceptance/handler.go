package acceptance

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/orders"
)

// Handler exposes the accept endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type acceptResponse struct {
	Order        orders.View `json:"order"`
	BalanceAfter string      `json:"balance_after"`
}

// Accept assigns the calling master to the order. The route is mounted behind
// middleware.RequireRole(identity.RoleMaster).
func (h *Handler) Accept(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}

	res, err := h.svc.Accept(c.UserContext(), c.Params("id"), account.ID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(acceptResponse{
		Order:        orders.ToView(res.Order),
		BalanceAfter: res.BalanceAfter.Amount.StringFixed(2),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return apperror.Wrap(err, http.StatusNotFound, apperror.KindNotFound, "order not found")
	case errors.Is(err, ErrAlreadyAssigned):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindAlreadyAssigned, "order already assigned to another master")
	case errors.Is(err, ErrOrderExpired):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindOrderExpired, "order expired")
	case errors.Is(err, ErrBelowMinimum):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindBelowMinimum, "order owner balance is below the required minimum")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindInsufficientFunds, "insufficient funds for the acceptance fee")
	case errors.Is(err, ErrNotPending):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindOrderNotPending, "order is not pending")
	case errors.Is(err, ErrOwnOrder):
		return apperror.Wrap(err, http.StatusForbidden, apperror.KindForbidden, "cannot accept own order")
	default:
		return err
	}
}
