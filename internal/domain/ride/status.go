package ride

import (
	"errors"
	"strings"
)

// BookingStatus is the lifecycle state of the driver's active booking as
// reported by the booking backend.
type BookingStatus string

const (
	StatusNone            BookingStatus = ""
	StatusAssigningDriver BookingStatus = "ASSIGNING_DRIVER"
	StatusScheduled       BookingStatus = "SCHEDULED"
	StatusArrived         BookingStatus = "ARRIVED"
	StatusInRide          BookingStatus = "IN_RIDE"
	StatusCompleted       BookingStatus = "COMPLETED"
)

var ErrInvalidStatus = errors.New("invalid booking status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
// The empty string parses to StatusNone.
func ParseStatus(in string) (BookingStatus, error) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status == StatusNone || status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the non-empty booking statuses.
func (status BookingStatus) Valid() bool {
	switch status {
	case StatusAssigningDriver, StatusScheduled, StatusArrived, StatusInRide, StatusCompleted:
		return true
	default:
		return false
	}
}

func (status BookingStatus) String() string {
	return string(status)
}

// CanTransitionTo reports whether the driver may move the booking to next.
func (status BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch status {
	case StatusAssigningDriver:
		return next == StatusScheduled
	case StatusScheduled:
		return next == StatusArrived
	case StatusArrived:
		return next == StatusInRide
	case StatusInRide:
		return next == StatusCompleted
	default:
		return false
	}
}

// Next is the status the driver's primary action advances to, or StatusNone.
func (status BookingStatus) Next() BookingStatus {
	switch status {
	case StatusAssigningDriver:
		return StatusScheduled
	case StatusScheduled:
		return StatusArrived
	case StatusArrived:
		return StatusInRide
	case StatusInRide:
		return StatusCompleted
	default:
		return StatusNone
	}
}

// RequiresOTP is true for the transition that starts the ride.
func (status BookingStatus) RequiresOTP() bool {
	return status == StatusInRide
}

// Terminal indicates the booking is finished and should be cleared locally.
func (status BookingStatus) Terminal() bool {
	return status == StatusCompleted
}
