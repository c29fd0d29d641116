package identity

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byPhone map[string]string
	byEmail map[string]string
}

// NewMemoryRepository builds an in-memory account store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[string]Account),
		byPhone: make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (r *memoryRepository) GetOrCreate(_ context.Context, account Account) (Account, bool, error) {
	if account.Phone == "" && account.Email == "" {
		return Account{}, false, errors.New("account needs a phone or email")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPhone[account.Phone]; ok && account.Phone != "" {
		return r.byID[id], false, nil
	}
	if id, ok := r.byEmail[account.Email]; ok && account.Email != "" {
		return r.byID[id], false, nil
	}
	r.byID[account.ID] = account
	if account.Phone != "" {
		r.byPhone[account.Phone] = account.ID
	}
	if account.Email != "" {
		r.byEmail[account.Email] = account.ID
	}
	return account, true, nil
}

func (r *memoryRepository) FindByIdentifier(_ context.Context, id Identifier) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	index := r.byPhone
	if id.Kind == KindEmail {
		index = r.byEmail
	}
	accountID, ok := index[id.Value]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[accountID], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *memoryRepository) IncrementTokenVersion(_ context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	account.TokenVersion++
	r.byID[id] = account
	return account, nil
}
