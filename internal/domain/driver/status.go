package driver

import (
	"errors"
	"strings"
)

// DriverStatus is the availability the agent announces to the dispatch side.
type DriverStatus string

const (
	DriverStatusOffline   DriverStatus = "OFFLINE"
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusBusy      DriverStatus = "BUSY"
)

var ErrInvalidDriverStatus = errors.New("invalid driver status")

// ParseDriverStatus normalizes (uppercases+trims) and validates a driver status string.
func ParseDriverStatus(in string) (DriverStatus, error) {
	status := DriverStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidDriverStatus
}

func (status DriverStatus) Valid() bool {
	switch status {
	case DriverStatusOffline, DriverStatusAvailable, DriverStatusBusy:
		return true
	default:
		return false
	}
}

// StatusFor derives the announced status from intent and booking state.
func StatusFor(online, onRide bool) DriverStatus {
	switch {
	case !online:
		return DriverStatusOffline
	case onRide:
		return DriverStatusBusy
	default:
		return DriverStatusAvailable
	}
}

func (status DriverStatus) String() string {
	return string(status)
}
