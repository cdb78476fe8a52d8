package ride

import (
	"errors"
	"strings"
	"time"
)

const (
	DefaultPassengerName = "Passenger"
	DefaultPassengerID   = "Unknown"
	DefaultCancelReason  = "Passenger cancelled the ride."
)

var ErrMissingBookingID = errors.New("ride event has no booking id")

// Place is a pickup or drop point as shown to the driver.
type Place struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Passenger struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is the normalized realtime ride event. Only the fields relevant to
// Type are populated: Passenger/Pickup/Drop/Fare for RIDE_REQUEST and Reason
// for RIDE_CANCELLED.
type Event struct {
	Type       EventType `json:"type"`
	BookingID  string    `json:"booking_id"`
	Passenger  Passenger `json:"passenger"`
	Pickup     Place     `json:"pickup"`
	Drop       Place     `json:"drop"`
	Fare       float64   `json:"fare"`
	Reason     string    `json:"reason,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Normalize fills defaults and checks the fields every variant needs.
func (e *Event) Normalize() error {
	if !e.Type.Valid() {
		return ErrInvalidEventType
	}
	e.BookingID = strings.TrimSpace(e.BookingID)
	if e.BookingID == "" {
		return ErrMissingBookingID
	}

	switch e.Type {
	case EventRideRequest:
		if strings.TrimSpace(e.Passenger.Name) == "" {
			e.Passenger.Name = DefaultPassengerName
		}
		if strings.TrimSpace(e.Passenger.ID) == "" {
			e.Passenger.ID = DefaultPassengerID
		}
	case EventRideCancelled:
		if strings.TrimSpace(e.Reason) == "" {
			e.Reason = DefaultCancelReason
		}
	}

	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	return nil
}
