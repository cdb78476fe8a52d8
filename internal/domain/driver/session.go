package driver

import (
	"errors"
	"strings"
)

// Role is the role the auth backend reports for the identity.
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
	RoleAdmin     Role = "ADMIN"
)

func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

func (role Role) IsDriver() bool { return role == RoleDriver }

var (
	ErrDriverIDRequired = errors.New("driver id is required")
	ErrNotDriver        = errors.New("identity is not a driver")
)

// Session is the authenticated driver identity. Loading is true between
// restoring a cached identity and the backend confirming it.
type Session struct {
	DriverID      string `json:"driver_id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email,omitempty"`
	Role          Role   `json:"role"`
	Authenticated bool   `json:"authenticated"`
	Loading       bool   `json:"loading"`
}

// Identity is the persisted part of a Session.
type Identity struct {
	DriverID    string `json:"driver_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
}

// NewIdentity validates the fields a driver identity must carry.
func NewIdentity(driverID, name, email string, role Role) (Identity, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return Identity{}, ErrDriverIDRequired
	}
	if role != "" && !role.IsDriver() {
		return Identity{}, ErrNotDriver
	}
	if role == "" {
		role = RoleDriver
	}
	return Identity{
		DriverID:    driverID,
		DisplayName: strings.TrimSpace(name),
		Email:       strings.TrimSpace(email),
		Role:        role,
	}, nil
}

// CanConnect is the session half of the realtime connect precondition.
func (s Session) CanConnect() bool {
	return s.Authenticated && !s.Loading && s.DriverID != ""
}

func (s Session) Identity() Identity {
	return Identity{DriverID: s.DriverID, DisplayName: s.DisplayName, Email: s.Email, Role: s.Role}
}
