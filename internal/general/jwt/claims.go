package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ride-driver/internal/domain/driver"
)

// Claims is the bearer token payload the dispatch backends accept.
type Claims struct {
	Role driver.Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewDriverClaims constructs claims for a driver subject.
func NewDriverClaims(driverID string, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: driver.RoleDriver,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   driverID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
