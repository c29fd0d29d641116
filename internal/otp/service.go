package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/metrics"
	"github.com/check8auto/check8auto/internal/notification"
)

const (
	codeMin = 1000
	codeMax = 9999

	defaultTTL = 300 * time.Second

	emailSubject = "Check8Auto login code"
)

// Identities finds and creates accounts for verified identifiers.
type Identities interface {
	Exists(ctx context.Context, id identity.Identifier) (bool, error)
	Resolve(ctx context.Context, id identity.Identifier, role identity.Role) (identity.Account, bool, error)
}

// Sessions issues session credentials for a resolved account.
type Sessions interface {
	Issue(account identity.Account) (auth.TokenPair, error)
}

// Config tunes the challenge flow.
type Config struct {
	TTL      time.Duration
	HashCost int
}

// Service implements the send/verify one-time-code flow.
type Service struct {
	store    Store
	ids      Identities
	notifier notification.Notifier
	sessions Sessions
	cfg      Config
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	codes    func() (string, error)
}

// NewService wires the challenge flow.
func NewService(store Store, ids Identities, notifier notification.Notifier, sessions Sessions, cfg Config, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		ids:      ids,
		notifier: notifier,
		sessions: sessions,
		cfg:      cfg,
		clock:    clk,
		metrics:  m,
		logger:   logger,
		codes:    randomCode,
	}
}

// SendResult describes an issued challenge.
type SendResult struct {
	Identifier  identity.Identifier
	UserExisted bool
}

// VerifyResult is returned after a successful verification.
type VerifyResult struct {
	Account identity.Account
	Created bool
	Tokens  auth.TokenPair
}

// Send issues a new code for raw and delivers it. Any earlier code for the
// same identifier stops working.
func (s *Service) Send(ctx context.Context, raw string, role identity.Role) (SendResult, error) {
	id, err := identity.ParseIdentifier(raw)
	if err != nil {
		return SendResult{}, err
	}
	if _, err := identity.ParseRole(string(role)); err != nil {
		return SendResult{}, err
	}

	existed, err := s.ids.Exists(ctx, id)
	if err != nil {
		return SendResult{}, err
	}

	code, err := s.codes()
	if err != nil {
		return SendResult{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return SendResult{}, fmt.Errorf("hash code: %w", err)
	}

	channel := channelFor(id)
	if err := s.notifier.Send(ctx, message(id, code)); err != nil {
		s.metrics.ObserveOTPSend(channel, "gateway_error")
		s.logger.Warn("code delivery failed", slog.String("kind", string(id.Kind)), slog.Any("error", err))
		if !errors.Is(err, notification.ErrGateway) {
			err = fmt.Errorf("%w: %v", notification.ErrGateway, err)
		}
		return SendResult{}, err
	}

	challenge := Challenge{
		Identifier:  id,
		CodeHash:    hash,
		UserExisted: existed,
		CreatedAt:   s.clock.Now(),
		TTL:         s.cfg.TTL,
	}
	if !existed {
		challenge.PendingRole = role
	}
	if err := s.store.Put(ctx, challenge); err != nil {
		return SendResult{}, err
	}

	s.metrics.ObserveOTPSend(channel, "ok")
	return SendResult{Identifier: id, UserExisted: existed}, nil
}

// Verify checks code for raw, consuming the challenge on success, and returns
// the resolved account with fresh session tokens. An explicit role wins over
// the one remembered at send time; either only applies to new accounts.
func (s *Service) Verify(ctx context.Context, raw, code string, role identity.Role) (VerifyResult, error) {
	id, err := identity.ParseIdentifier(raw)
	if err != nil {
		return VerifyResult{}, err
	}
	if _, err := identity.ParseRole(string(role)); err != nil {
		return VerifyResult{}, err
	}
	if !wellFormed(code) {
		return VerifyResult{}, ErrMalformedCode
	}

	challenge, err := s.store.Consume(ctx, id, func(c Challenge) bool {
		return s.clock.Now().Before(c.ExpiresAt()) && c.Matches(code)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredOrMissing):
			s.metrics.ObserveOTPVerify("expired_or_missing")
		case errors.Is(err, ErrInvalidCode):
			s.metrics.ObserveOTPVerify("invalid_code")
		}
		return VerifyResult{}, err
	}

	if role == identity.RoleNone {
		role = challenge.PendingRole
	}
	account, created, err := s.ids.Resolve(ctx, id, role)
	if err != nil {
		return VerifyResult{}, err
	}
	tokens, err := s.sessions.Issue(account)
	if err != nil {
		return VerifyResult{}, err
	}

	if err := s.store.Invalidate(ctx, id); err != nil {
		s.logger.Warn("challenge invalidate failed", slog.Any("error", err))
	}
	s.metrics.ObserveOTPVerify("ok")
	return VerifyResult{Account: account, Created: created, Tokens: tokens}, nil
}

func wellFormed(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func channelFor(id identity.Identifier) string {
	if id.Kind == identity.KindEmail {
		return notification.KindEmail
	}
	return notification.KindSMS
}

func message(id identity.Identifier, code string) notification.Message {
	body := "Your confirmation code: " + code
	msg := notification.Message{Kind: channelFor(id), Destination: id.Value, Body: body}
	if id.Kind == identity.KindEmail {
		msg.Subject = emailSubject
	}
	return msg
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", codeMin+n.Int64()), nil
}
