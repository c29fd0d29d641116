package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/check8auto/check8auto/internal/apperror"
)

const accountLocal = "account"

// SetCurrent stores the authenticated account on the request.
func SetCurrent(c *fiber.Ctx, account Account) {
	c.Locals(accountLocal, account)
}

// Current returns the authenticated account or a 401 error when the route is
// reached without the JWT middleware.
func Current(c *fiber.Ctx) (Account, error) {
	account, ok := c.Locals(accountLocal).(Account)
	if !ok || account.ID == "" {
		return Account{}, apperror.New(http.StatusUnauthorized, apperror.KindUnauthorized, "authentication required")
	}
	return account, nil
}
