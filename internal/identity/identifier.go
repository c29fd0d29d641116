package identity

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidIdentifier is returned for phone numbers and emails that cannot be normalized.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var validate = validator.New()

// Kind distinguishes phone and email identifiers.
type Kind string

const (
	KindPhone Kind = "phone"
	KindEmail Kind = "email"
)

// Identifier is a normalized login handle.
type Identifier struct {
	Kind  Kind
	Value string
}

func (i Identifier) String() string {
	return string(i.Kind) + ":" + i.Value
}

// Phone builds a phone identifier from raw user input.
func Phone(raw string) (Identifier, error) {
	digits, err := NormalizePhone(raw)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Kind: KindPhone, Value: digits}, nil
}

// Email builds an email identifier from raw user input.
func Email(raw string) (Identifier, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if addr == "" || validate.Var(addr, "required,email") != nil {
		return Identifier{}, ErrInvalidIdentifier
	}
	return Identifier{Kind: KindEmail, Value: addr}, nil
}

// ParseIdentifier treats anything containing "@" as an email and everything
// else as a phone number.
func ParseIdentifier(raw string) (Identifier, error) {
	if strings.Contains(raw, "@") {
		return Email(raw)
	}
	return Phone(raw)
}

// NormalizePhone strips formatting and accepts Uzbek (998 + 9 digits) and
// Russian (7 or 8 + 10 digits) numbers. Russian numbers are returned with a
// leading 7.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "998"):
		return digits, nil
	case len(digits) == 11 && (digits[0] == '7' || digits[0] == '8'):
		return "7" + digits[1:], nil
	default:
		return "", ErrInvalidIdentifier
	}
}

// DisplayName synthesizes the name given to accounts created on first login.
func DisplayName(id Identifier) string {
	switch id.Kind {
	case KindPhone:
		if strings.HasPrefix(id.Value, "998") {
			return "UZ_" + id.Value[3:]
		}
		return "RU_" + id.Value[1:]
	case KindEmail:
		if at := strings.IndexByte(id.Value, '@'); at > 0 {
			return id.Value[:at]
		}
	}
	return id.Value
}
