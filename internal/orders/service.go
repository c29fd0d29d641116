package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/metrics"
)

const (
	defaultTTL   = 24 * time.Hour
	maxListLimit = 100
)

// CreateInput is what a client supplies for a new order.
type CreateInput struct {
	OwnerID     string
	Description string
	Priority    Priority
	Data        map[string]any
	Location    string
	Latitude    *float64
	Longitude   *float64
	// MasterID optionally reserves the order for one master; it still has to
	// be accepted.
	MasterID *string
}

// Service implements the order lifecycle.
type Service struct {
	repo    Repository
	ttl     time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService builds the lifecycle service. ttl is the time from creation to expiration.
func NewService(repo Repository, ttl time.Duration, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ttl: ttl, clock: clk, metrics: m, logger: logger}
}

// Create stores a new pending order owned by in.OwnerID.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if err := validateCreate(in); err != nil {
		return Order{}, err
	}
	if in.Priority == "" {
		in.Priority = PriorityLow
	}
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}

	now := s.clock.Now()
	order := Order{
		ID:          uuid.New().String(),
		OwnerID:     in.OwnerID,
		Description: strings.TrimSpace(in.Description),
		Status:      StatusPending,
		Priority:    in.Priority,
		Data:        data,
		Location:    strings.TrimSpace(in.Location),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		MasterID:    in.MasterID,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return Order{}, err
	}
	s.metrics.ObserveOrderCreated()
	s.logger.Info("order created", slog.String("order_id", order.ID), slog.String("owner_id", order.OwnerID))
	return order, nil
}

// Get loads an order, cancelling it first if it expired while pending.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	order, _, err = s.ExpireIfNeeded(ctx, order)
	return order, err
}

// ExpireIfNeeded cancels a pending order past its expiration time and reports
// whether it did.
func (s *Service) ExpireIfNeeded(ctx context.Context, order Order) (Order, bool, error) {
	now := s.clock.Now()
	if order.Status != StatusPending || !order.IsExpired(now) {
		return order, false, nil
	}
	expired := order
	expired.Status = StatusCancelled
	expired.UpdatedAt = now
	if err := s.repo.Update(ctx, expired, StatusPending); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			current, getErr := s.repo.Get(ctx, order.ID)
			return current, false, getErr
		}
		return order, false, err
	}
	s.metrics.ObserveOrderExpired()
	s.logger.Info("order expired", slog.String("order_id", order.ID))
	return expired, true, nil
}

// UpdateStatus moves an order along the lifecycle graph on behalf of its owner
// or assigned master. in_progress is only reached through acceptance, which
// charges the fee, so it is refused here even for a reserved order.
func (s *Service) UpdateStatus(ctx context.Context, id, actorID string, next Status) (Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.OwnerID != actorID && !order.AssignedTo(actorID) {
		return Order{}, ErrForbidden
	}
	if !order.Status.CanTransition(next) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, next)
	}
	if next == StatusInProgress {
		return Order{}, fmt.Errorf("%w: in_progress is reached by accepting the order", ErrInvalidTransition)
	}

	from := order.Status
	order.Status = next
	order.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, order, from); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return Order{}, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return Order{}, err
	}
	s.logger.Info("order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(next)))
	return order, nil
}

// List returns the orders the actor owns or is assigned to, newest first. With
// f.Open a master instead sees the pending orders still open to them: no master
// yet or reserved for them, not their own and not expired.
func (s *Service) List(ctx context.Context, actorID string, isMaster bool, f ListFilter) ([]Order, error) {
	if f.Open && !isMaster {
		return nil, ErrForbidden
	}
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	if f.Open {
		if f.Status != "" && f.Status != StatusPending {
			return []Order{}, nil
		}
		f.Status = StatusPending
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	f.AccountID = actorID

	found, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(found))
	for _, o := range found {
		o, _, err := s.ExpireIfNeeded(ctx, o)
		if err != nil {
			return nil, err
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case in.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidOrder)
	case in.MasterID != nil && *in.MasterID == in.OwnerID:
		return fmt.Errorf("%w: owner cannot be the master", ErrInvalidOrder)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidOrder)
	case strings.TrimSpace(in.Location) == "":
		return fmt.Errorf("%w: location is required", ErrInvalidOrder)
	case (in.Latitude == nil) != (in.Longitude == nil):
		return fmt.Errorf("%w: latitude and longitude go together", ErrInvalidOrder)
	case in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90):
		return fmt.Errorf("%w: latitude must be within [-90, 90]", ErrInvalidOrder)
	case in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180):
		return fmt.Errorf("%w: longitude must be within [-180, 180]", ErrInvalidOrder)
	}
	if in.Priority != "" && in.Priority != PriorityLow && in.Priority != PriorityHigh {
		return fmt.Errorf("%w: priority must be low or high", ErrInvalidOrder)
	}
	return nil
}
