package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken = errors.New("bearer token missing")
	ErrNoExpiry   = errors.New("token has no expiry")
)

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

func NewManager(secret string, accessTTL time.Duration) (*Manager, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, errors.New("jwt: empty secret key")
	}
	return &Manager{secret: []byte(s), accessTTL: accessTTL}, nil
}

// IssueDriverToken returns a signed access token for driverID.
func (m *Manager) IssueDriverToken(driverID string) (string, *Claims, error) {
	if strings.TrimSpace(driverID) == "" {
		return "", nil, fmt.Errorf("driver id is required")
	}
	claims := NewDriverClaims(driverID, m.accessTTL)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	return signed, claims, err
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// Expiry reads exp without verifying the signature. The agent does not hold
// the backend's key; it only uses this to skip restoring a session whose
// token has already lapsed.
func Expiry(token string) (time.Time, error) {
	raw := StripBearer(token)
	if raw == "" {
		return time.Time{}, ErrEmptyToken
	}
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether token's exp is at or before now. Tokens without
// an exp claim never expire.
func Expired(token string, now time.Time) (bool, error) {
	exp, err := Expiry(token)
	if errors.Is(err, ErrNoExpiry) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !now.Before(exp), nil
}
