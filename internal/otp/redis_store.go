package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
)

// RedisStore keeps challenges as JSON values with a Redis TTL. Expiry is also
// checked against the clock, so a key Redis has not evicted yet is still
// treated as gone once the challenge TTL has passed.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedisStore wraps a connected Redis client.
func NewRedisStore(client *redis.Client, clk clock.Clock) *RedisStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &RedisStore{client: client, clock: clk}
}

func (s *RedisStore) expired(c Challenge) bool {
	return !s.clock.Now().Before(c.ExpiresAt())
}

type storedChallenge struct {
	Kind        identity.Kind `json:"kind"`
	Value       string        `json:"value"`
	CodeHash    []byte        `json:"code_hash"`
	UserExisted bool          `json:"user_existed"`
	PendingRole identity.Role `json:"pending_role,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
}

func (s *RedisStore) Put(ctx context.Context, c Challenge) error {
	if c.TTL <= 0 {
		return fmt.Errorf("challenge ttl must be positive")
	}
	payload, err := json.Marshal(storedChallenge{
		Kind:        c.Identifier.Kind,
		Value:       c.Identifier.Value,
		CodeHash:    c.CodeHash,
		UserExisted: c.UserExisted,
		PendingRole: c.PendingRole,
		CreatedAt:   c.CreatedAt,
		TTL:         c.TTL,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, storeKey(c.Identifier), payload, c.TTL).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id identity.Identifier) (Challenge, error) {
	raw, err := s.client.Get(ctx, storeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, ErrExpiredOrMissing
		}
		return Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	c, err := decodeChallenge(raw)
	if err != nil {
		return Challenge{}, err
	}
	if s.expired(c) {
		return Challenge{}, ErrExpiredOrMissing
	}
	return c, nil
}

// Consume uses WATCH/MULTI so a concurrent Put or Consume on the same key
// aborts this one instead of letting a code be used twice.
func (s *RedisStore) Consume(ctx context.Context, id identity.Identifier, match func(Challenge) bool) (Challenge, error) {
	key := storeKey(id)
	var consumed Challenge

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrExpiredOrMissing
			}
			return err
		}
		c, err := decodeChallenge(raw)
		if err != nil {
			return err
		}
		if s.expired(c) {
			return ErrExpiredOrMissing
		}
		if !match(c) {
			return ErrInvalidCode
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		}); err != nil {
			return err
		}
		consumed = c
		return nil
	}, key)

	switch {
	case err == nil:
		return consumed, nil
	case errors.Is(err, ErrExpiredOrMissing), errors.Is(err, ErrInvalidCode):
		return Challenge{}, err
	case errors.Is(err, redis.TxFailedErr):
		return Challenge{}, ErrExpiredOrMissing
	default:
		return Challenge{}, fmt.Errorf("consume challenge: %w", err)
	}
}

func (s *RedisStore) Invalidate(ctx context.Context, id identity.Identifier) error {
	if err := s.client.Del(ctx, storeKey(id)).Err(); err != nil {
		return fmt.Errorf("invalidate challenge: %w", err)
	}
	return nil
}

func decodeChallenge(raw []byte) (Challenge, error) {
	var stored storedChallenge
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return Challenge{
		Identifier:  identity.Identifier{Kind: stored.Kind, Value: stored.Value},
		CodeHash:    stored.CodeHash,
		UserExisted: stored.UserExisted,
		PendingRole: stored.PendingRole,
		CreatedAt:   stored.CreatedAt,
		TTL:         stored.TTL,
	}, nil
}
