package identity

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/ledger"
)

// Handler exposes profile endpoints.
type Handler struct {
	ledger ledger.Ledger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(l ledger.Ledger) *Handler {
	return &Handler{ledger: l}
}

// AccountView is the JSON shape of an account.
type AccountView struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role,omitempty"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// View renders account for responses.
func View(account Account) AccountView {
	return AccountView{
		ID:          account.ID,
		Phone:       account.Phone,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Role:        string(account.Role),
		Verified:    account.Verified,
		CreatedAt:   account.CreatedAt,
	}
}

type meResponse struct {
	Account AccountView `json:"account"`
	Balance string      `json:"balance"`
}

// Me returns the caller's account and current balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	account, err := Current(c)
	if err != nil {
		return err
	}
	balance, err := h.ledger.GetOrCreate(c.UserContext(), account.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(meResponse{Account: View(account), Balance: balance.Amount.StringFixed(2)})
}
