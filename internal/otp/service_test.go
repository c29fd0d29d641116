package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/logging"
	"github.com/check8auto/check8auto/internal/metrics"
	"github.com/check8auto/check8auto/internal/notification"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, m)
	return nil
}

func (n *captureNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	body := n.sent[len(n.sent)-1].Body
	return body[len(body)-4:]
}

type fixture struct {
	svc      *Service
	clock    *clock.Manual
	notifier *captureNotifier
	ids      *identity.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, NewMemoryStore)
}

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newFixtureWithStore(t, func(clk clock.Clock) Store { return NewRedisStore(client, clk) })
}

func newFixtureWithStore(t *testing.T, newStore func(clock.Clock) Store) *fixture {
	t.Helper()
	clk := clock.NewManual(time.Now())
	ids := identity.NewService(identity.NewMemoryRepository(), clk, logging.Discard())
	issuer := auth.NewTokenIssuer("access-secret-0123456789", "refresh-secret-0123456789", time.Hour, 24*time.Hour, "test", clk)
	notifier := &captureNotifier{}
	svc := NewService(newStore(clk), ids, notifier, issuer,
		Config{TTL: 300 * time.Second, HashCost: bcrypt.MinCost}, clk, metrics.New(), logging.Discard())
	return &fixture{svc: svc, clock: clk, notifier: notifier, ids: ids}
}

func TestSendThenVerifyCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, "+998901234567", identity.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, identity.Identifier{Kind: identity.KindPhone, Value: "998901234567"}, sent.Identifier)
	assert.False(t, sent.UserExisted)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification.KindSMS, f.notifier.sent[0].Kind)
	assert.Equal(t, "998901234567", f.notifier.sent[0].Destination)

	code := f.notifier.lastCode(t)
	res, err := f.svc.Verify(ctx, "998901234567", code, identity.RoleDriver)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, identity.RoleDriver, res.Account.Role)
	assert.True(t, res.Account.Verified)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	_, err = f.svc.Verify(ctx, "998901234567", code, identity.RoleDriver)
	assert.ErrorIs(t, err, ErrExpiredOrMissing)
}

func TestVerifyWrongCodeKeepsChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "user@mail.ru", identity.RoleNone)
	require.NoError(t, err)
	code := f.notifier.lastCode(t)
	wrong := "1000"
	if code == wrong {
		wrong = "1001"
	}

	_, err = f.svc.Verify(ctx, "user@mail.ru", wrong, identity.RoleNone)
	assert.ErrorIs(t, err, ErrInvalidCode)

	res, err := f.svc.Verify(ctx, "USER@mail.ru", code, identity.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, "user@mail.ru", res.Account.Email)
	assert.Equal(t, "Check8Auto login code", f.notifier.sent[0].Subject)
}

func TestVerifyAfterTTLIsExpired(t *testing.T) {
	stores := map[string]func(*testing.T) *fixture{
		"memory": newFixture,
		"redis":  newRedisFixture,
	}
	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			f := build(t)
			ctx := context.Background()

			_, err := f.svc.Send(ctx, "79161234567", identity.RoleNone)
			require.NoError(t, err)
			code := f.notifier.lastCode(t)

			// The Redis key outlives the challenge here: only the clock moved.
			f.clock.Advance(301 * time.Second)
			_, err = f.svc.Verify(ctx, "79161234567", code, identity.RoleNone)
			assert.ErrorIs(t, err, ErrExpiredOrMissing)

			_, err = f.svc.Verify(ctx, "79161234567", code, identity.RoleNone)
			assert.ErrorIs(t, err, ErrExpiredOrMissing)
		})
	}
}

func TestRedisStoreSendThenVerify(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "user@mail.ru", identity.RoleNone)
	require.NoError(t, err)
	code := f.notifier.lastCode(t)

	f.clock.Advance(299 * time.Second)
	res, err := f.svc.Verify(ctx, "user@mail.ru", code, identity.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, "user@mail.ru", res.Account.Email)

	_, err = f.svc.Verify(ctx, "user@mail.ru", code, identity.RoleNone)
	assert.ErrorIs(t, err, ErrExpiredOrMissing)
}

func TestResendReplacesPreviousCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := []string{"1111", "2222"}
	var i int32
	f.svc.codes = func() (string, error) {
		return codes[atomic.AddInt32(&i, 1)-1], nil
	}

	_, err := f.svc.Send(ctx, "+998901234567", identity.RoleNone)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, "+998901234567", identity.RoleNone)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "+998901234567", "1111", identity.RoleNone)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.Verify(ctx, "+998901234567", "2222", identity.RoleNone)
	assert.NoError(t, err)
}

func TestPendingRoleFromSendAppliesToNewAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "+998901234567", identity.RoleMaster)
	require.NoError(t, err)
	res, err := f.svc.Verify(ctx, "+998901234567", f.notifier.lastCode(t), identity.RoleNone)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleMaster, res.Account.Role)

	sent, err := f.svc.Send(ctx, "+998901234567", identity.RoleDriver)
	require.NoError(t, err)
	assert.True(t, sent.UserExisted)
	res, err = f.svc.Verify(ctx, "+998901234567", f.notifier.lastCode(t), identity.RoleNone)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, identity.RoleMaster, res.Account.Role)
}

func TestSendGatewayFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("smsc unreachable")

	_, err := f.svc.Send(ctx, "+998901234567", identity.RoleNone)
	assert.ErrorIs(t, err, notification.ErrGateway)

	_, err = f.svc.Verify(ctx, "+998901234567", "1234", identity.RoleNone)
	assert.ErrorIs(t, err, ErrExpiredOrMissing)
}

func TestSendAndVerifyValidateInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "12345", identity.RoleNone)
	assert.ErrorIs(t, err, identity.ErrInvalidIdentifier)
	_, err = f.svc.Send(ctx, "+998901234567", identity.Role("admin"))
	assert.ErrorIs(t, err, identity.ErrInvalidRole)
	_, err = f.svc.Verify(ctx, "+998901234567", "12a4", identity.RoleNone)
	assert.ErrorIs(t, err, ErrMalformedCode)
	assert.Empty(t, f.notifier.sent)
}

func TestConcurrentVerifySucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "+998901234567", identity.RoleNone)
	require.NoError(t, err)
	code := f.notifier.lastCode(t)

	var ok, expired int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.Verify(ctx, "+998901234567", code, identity.RoleNone)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrExpiredOrMissing):
				atomic.AddInt32(&expired, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(7), expired)
}

func TestRandomCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		require.Len(t, code, 4)
		assert.True(t, strings.Trim(code, "0123456789") == "" && code >= "1000" && code <= "9999", code)
	}
}
