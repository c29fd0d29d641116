package funding

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/check8auto/check8auto/internal/apperror"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/ledger"
)

var validate = validator.New()

// Handler exposes balance endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TopUp credits the caller's balance from a card.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	var req TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperror.BadRequest("card_number and a numeric amount are required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return apperror.BadRequest("amount must be a decimal number")
	}

	result, err := h.service.TopUp(c.UserContext(), TopUpInput{
		AccountID:  account.ID,
		CardNumber: req.CardNumber,
		Amount:     amount,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(TopUpResponse{
		Balance:           result.Balance.Amount.StringFixed(2),
		AcquirerReference: result.AcquirerReference,
	})
}

// Balance returns the caller's balance and recent journal entries.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account, err := identity.Current(c)
	if err != nil {
		return err
	}
	balance, entries, err := h.service.Balance(c.UserContext(), account.ID)
	if err != nil {
		return err
	}

	resp := BalanceResponse{Balance: balance.Amount.StringFixed(2), Entries: make([]EntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryView{
			ID:        e.ID,
			Delta:     e.Delta.StringFixed(2),
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCard), errors.Is(err, ledger.ErrInvalidAmount):
		return apperror.Wrap(err, http.StatusBadRequest, apperror.KindValidation, err.Error())
	case errors.Is(err, ErrDeclined):
		return apperror.Wrap(err, http.StatusPaymentRequired, apperror.KindDeclined, err.Error())
	case errors.Is(err, ErrAcquirer):
		return apperror.Wrap(err, http.StatusBadGateway, apperror.KindGateway, "card processor unavailable")
	default:
		return err
	}
}
