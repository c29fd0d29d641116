package otp

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/check8auto/check8auto/internal/identity"
)

var (
	// ErrExpiredOrMissing is returned when no live challenge exists for an identifier.
	ErrExpiredOrMissing = errors.New("code expired or not requested")
	// ErrInvalidCode is returned when the submitted code does not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrMalformedCode is returned for codes that are not four digits.
	ErrMalformedCode = errors.New("code must be four digits")
)

// Challenge is a pending one-time-code verification for a single identifier.
// The code itself is never stored, only its bcrypt hash.
type Challenge struct {
	Identifier  identity.Identifier
	CodeHash    []byte
	UserExisted bool
	PendingRole identity.Role
	CreatedAt   time.Time
	TTL         time.Duration
}

// ExpiresAt is the instant after which the challenge is treated as missing.
func (c Challenge) ExpiresAt() time.Time {
	return c.CreatedAt.Add(c.TTL)
}

// Matches reports whether code is the one this challenge was issued with.
func (c Challenge) Matches(code string) bool {
	return bcrypt.CompareHashAndPassword(c.CodeHash, []byte(code)) == nil
}

// Store keeps at most one challenge per identifier. Implementations namespace
// keys by identifier kind and expire entries on their own.
type Store interface {
	// Put replaces any outstanding challenge for the same identifier.
	Put(ctx context.Context, challenge Challenge) error
	Get(ctx context.Context, id identity.Identifier) (Challenge, error)
	// Consume deletes the challenge only if match accepts it, in one atomic
	// step. A rejected challenge is left untouched and ErrInvalidCode returned.
	Consume(ctx context.Context, id identity.Identifier, match func(Challenge) bool) (Challenge, error)
	Invalidate(ctx context.Context, id identity.Identifier) error
}

func storeKey(id identity.Identifier) string {
	return "otp:v1:" + string(id.Kind) + ":" + id.Value
}
