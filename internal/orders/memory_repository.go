package orders

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryRepository builds an in-memory order store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{orders: make(map[string]Order)}
}

func (r *memoryRepository) Create(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = clone(o)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *memoryRepository) Update(_ context.Context, o Order, from Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from {
		return ErrStatusChanged
	}
	stored.Status = o.Status
	stored.MasterID = o.MasterID
	stored.UpdatedAt = o.UpdatedAt
	r.orders[o.ID] = clone(stored)
	return nil
}

func (r *memoryRepository) List(_ context.Context, f ListFilter) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Order{}
	for _, o := range r.orders {
		if f.Matches(o) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func clone(o Order) Order {
	if o.MasterID != nil {
		m := *o.MasterID
		o.MasterID = &m
	}
	if o.Data != nil {
		data := make(map[string]any, len(o.Data))
		for k, v := range o.Data {
			data[k] = v
		}
		o.Data = data
	}
	return o
}
