package funding

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeTopUp(ctx context.Context, input TopUpAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Approved  bool
}

// TopUpAuthorization carries the card charge requested by a top-up.
type TopUpAuthorization struct {
	AccountID  string
	CardNumber string
	Amount     decimal.Decimal
}

// StaticAcquirer simulates a successful acquirer integration.
type StaticAcquirer struct{}

// AuthorizeTopUp approves every charge with a synthetic reference.
func (StaticAcquirer) AuthorizeTopUp(_ context.Context, _ TopUpAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Approved: true}, nil
}
