package otp

import (
	"context"
	"sync"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
)

type memoryStore struct {
	mu         sync.Mutex
	clock      clock.Clock
	challenges map[string]Challenge
}

// NewMemoryStore builds an in-process challenge store for development and tests.
func NewMemoryStore(clk clock.Clock) Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &memoryStore{clock: clk, challenges: make(map[string]Challenge)}
}

func (s *memoryStore) Put(_ context.Context, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[storeKey(c.Identifier)] = c
	return nil
}

func (s *memoryStore) Get(_ context.Context, id identity.Identifier) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(storeKey(id))
}

func (s *memoryStore) Consume(_ context.Context, id identity.Identifier, match func(Challenge) bool) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(id)
	c, err := s.live(key)
	if err != nil {
		return Challenge{}, err
	}
	if !match(c) {
		return Challenge{}, ErrInvalidCode
	}
	delete(s.challenges, key)
	return c, nil
}

func (s *memoryStore) Invalidate(_ context.Context, id identity.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, storeKey(id))
	return nil
}

// live must be called with mu held.
func (s *memoryStore) live(key string) (Challenge, error) {
	c, ok := s.challenges[key]
	if !ok {
		return Challenge{}, ErrExpiredOrMissing
	}
	if !s.clock.Now().Before(c.ExpiresAt()) {
		delete(s.challenges, key)
		return Challenge{}, ErrExpiredOrMissing
	}
	return c, nil
}
