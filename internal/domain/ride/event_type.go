package ride

import (
	"errors"
	"strings"
)

// EventType is the discriminator of realtime ride messages.
type EventType string

const (
	EventRideRequest   EventType = "RIDE_REQUEST"
	EventRideCancelled EventType = "RIDE_CANCELLED"
	EventRideStarted   EventType = "RIDE_STARTED"
	EventRideCompleted EventType = "RIDE_COMPLETED"
)

var ErrInvalidEventType = errors.New("invalid ride event type")

// ParseEventType normalizes (uppercases+trims) and validates an event type string.
func ParseEventType(input string) (EventType, error) {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(input)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

func (eventType EventType) Valid() bool {
	switch eventType {
	case EventRideRequest, EventRideCancelled, EventRideStarted, EventRideCompleted:
		return true
	default:
		return false
	}
}

func (eventType EventType) String() string {
	return string(eventType)
}
