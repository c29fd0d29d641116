package identity

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidRole is returned for role names outside the closed set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
)

// Role is fixed when the account is created.
type Role string

const (
	RoleNone   Role = ""
	RoleDriver Role = "driver"
	RoleMaster Role = "master"
)

// ParseRole accepts "driver" or "master" in any case; empty input means no role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleNone:
		return RoleNone, nil
	case RoleDriver:
		return RoleDriver, nil
	case RoleMaster:
		return RoleMaster, nil
	default:
		return RoleNone, ErrInvalidRole
	}
}

// Account is a client or master of the marketplace.
type Account struct {
	ID           string
	Phone        string
	Email        string
	DisplayName  string
	Role         Role
	Verified     bool
	TokenVersion int
	CreatedAt    time.Time
}

// Identifier returns the handle the account signed up with.
func (a Account) Identifier() Identifier {
	if a.Phone != "" {
		return Identifier{Kind: KindPhone, Value: a.Phone}
	}
	return Identifier{Kind: KindEmail, Value: a.Email}
}
