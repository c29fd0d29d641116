package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/identity"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or type checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by both access and refresh tokens.
type Claims struct {
	Role    string `json:"role,omitempty"`
	Version int    `json:"ver"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is the session credential returned after a successful verify or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenIssuer signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         clock.Clock
}

// NewTokenIssuer builds an issuer from the configured secrets and lifetimes.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string, clk clock.Clock) *TokenIssuer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		clock:         clk,
	}
}

// Issue returns a fresh access/refresh pair bound to the account's token version.
func (t *TokenIssuer) Issue(account identity.Account) (TokenPair, error) {
	access, err := t.sign(account, tokenTypeAccess, t.accessSecret, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(account, tokenTypeRefresh, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(t.accessTTL.Seconds())}, nil
}

// ParseAccess verifies an access token.
func (t *TokenIssuer) ParseAccess(token string) (Claims, error) {
	return t.parse(token, tokenTypeAccess, t.accessSecret)
}

// ParseRefresh verifies a refresh token.
func (t *TokenIssuer) ParseRefresh(token string) (Claims, error) {
	return t.parse(token, tokenTypeRefresh, t.refreshSecret)
}

func (t *TokenIssuer) sign(account identity.Account, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		Role:    string(account.Role),
		Version: account.TokenVersion,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(token, typ string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Type != typ || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
