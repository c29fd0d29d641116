package orders

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no order matches.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for status changes outside the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStatus is returned for unknown status names.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidOrder is returned when create input fails validation.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrStatusChanged is returned by Repository.Update when the stored status
	// no longer matches the one the caller read.
	ErrStatusChanged = errors.New("order status changed concurrently")
	// ErrForbidden is returned when the caller is neither owner nor assigned master.
	ErrForbidden = errors.New("order belongs to another account")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRejected   Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusRejected:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether next is reachable from s in one step.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Priority of an order.
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

// ParsePriority defaults to low for empty input.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", ErrInvalidOrder
	}
}

// Order is a service request created by a client and fulfilled by a master.
type Order struct {
	ID          string
	OwnerID     string
	Description string
	Status      Status
	Priority    Priority
	Data        map[string]any
	Location    string
	Latitude    *float64
	Longitude   *float64
	MasterID    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// ListFilter narrows an order listing. AccountID is set by the service.
type ListFilter struct {
	AccountID string
	Open      bool
	Status    Status
	Priority  Priority
	Limit     int
}

// Matches reports whether o belongs in a listing for f, ignoring Limit.
func (f ListFilter) Matches(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Priority != "" && o.Priority != f.Priority {
		return false
	}
	if f.Open {
		return o.OwnerID != f.AccountID && (o.MasterID == nil || *o.MasterID == f.AccountID)
	}
	return o.OwnerID == f.AccountID || o.AssignedTo(f.AccountID)
}

// IsExpired reports whether now is past the expiration time.
func (o Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// AssignedTo reports whether masterID is the order's master.
func (o Order) AssignedTo(masterID string) bool {
	return o.MasterID != nil && *o.MasterID == masterID
}

// VisibleTo reports whether accountID may read the order. Pending orders are
// open to any master so they can decide whether to accept.
func (o Order) VisibleTo(accountID string, isMaster bool) bool {
	if o.OwnerID == accountID || o.AssignedTo(accountID) {
		return true
	}
	return isMaster && o.Status == StatusPending && o.MasterID == nil
}
