package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/logging"
)

type declineAcquirer struct{ err error }

func (d declineAcquirer) AuthorizeTopUp(context.Context, TopUpAuthorization) (AuthorizationDecision, error) {
	if d.err != nil {
		return AuthorizationDecision{}, d.err
	}
	return AuthorizationDecision{Reference: "declined"}, nil
}

func newService(acq Acquirer) (*Service, ledger.Ledger) {
	l := ledger.NewInMemory()
	return NewService(l, acq, nil, nil, logging.Discard()), l
}

func TestTopUpCreditsBalance(t *testing.T) {
	ctx := context.Background()
	svc, l := newService(StaticAcquirer{})
	accountID := uuid.NewString()

	res, err := svc.TopUp(ctx, TopUpInput{
		AccountID:  accountID,
		CardNumber: "4111 1111 1111 1111",
		Amount:     decimal.RequireFromString("1500.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.50", res.Balance.Amount.StringFixed(2))
	assert.NotEmpty(t, res.AcquirerReference)

	balance, entries, err := svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(decimal.RequireFromString("1500.50")))
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ReasonTopUp, entries[0].Reason)

	stored, err := l.GetOrCreate(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(balance.Amount))
}

func TestTopUpRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)
	accountID := uuid.NewString()

	_, err := svc.TopUp(ctx, TopUpInput{AccountID: accountID, CardNumber: "4111", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrInvalidCard)

	_, err = svc.TopUp(ctx, TopUpInput{AccountID: accountID, CardNumber: "4111-1111-1111-1111", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrInvalidCard)

	for _, amount := range []string{"0", "-10", "10.001"} {
		_, err = svc.TopUp(ctx, TopUpInput{AccountID: accountID, CardNumber: "4111111111111111", Amount: decimal.RequireFromString(amount)})
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, amount)
	}
}

func TestTopUpAcquirerFailuresLeaveBalanceUntouched(t *testing.T) {
	ctx := context.Background()

	svc, l := newService(declineAcquirer{})
	accountID := uuid.NewString()
	_, err := svc.TopUp(ctx, TopUpInput{AccountID: accountID, CardNumber: "4111111111111111", Amount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, ErrDeclined)
	balance, err := l.GetOrCreate(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, balance.Amount.IsZero())

	svc, _ = newService(declineAcquirer{err: errors.New("connection reset")})
	_, err = svc.TopUp(ctx, TopUpInput{AccountID: accountID, CardNumber: "4111111111111111", Amount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, ErrAcquirer)
}

func TestNewServiceWithoutLogger(t *testing.T) {
	l := ledger.NewInMemory()
	svc := NewService(l, nil, nil, nil, nil)
	account := uuid.NewString()

	_, err := svc.TopUp(context.Background(), TopUpInput{
		AccountID: account, CardNumber: "4111111111111111", Amount: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	balance, entries, err := svc.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(decimal.NewFromInt(50)))
	assert.Len(t, entries, 1)
}
