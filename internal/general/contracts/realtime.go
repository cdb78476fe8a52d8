package contracts

import "encoding/json"

// Frame is the JSON envelope of every realtime message in both directions.
// Inbound ride messages arrive with Type set to the ride event type and the
// payload either in Data or flattened at the top level.
type Frame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Token       string          `json:"token,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type PickupLocation struct {
	PickupAddress string   `json:"pickupAddress"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

type DropLocation struct {
	DropAddress string   `json:"dropAddress"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// RideMessage is the backend's ride event payload. Every field is optional
// on the wire.
type RideMessage struct {
	Type           string          `json:"type"`
	BookingID      FlexString      `json:"bookingId"`
	PassengerID    FlexString      `json:"passengerId"`
	PassengerName  string          `json:"passengerName"`
	PickupLocation *PickupLocation `json:"pickupLocation"`
	DropLocation   *DropLocation   `json:"dropLocation"`
	Fare           FlexString      `json:"fare"`
	Reason         string          `json:"reason"`
}

// RideResponse is sent to /app/rideResponse/{driverId}.
type RideResponse struct {
	Response    bool   `json:"response"` // true accepts
	BookingID   string `json:"bookingId"`
	DriverID    string `json:"driverId"`
	PassengerID string `json:"passengerId"`
	Envelope
}

// RideLocation is sent to /app/driver/{driverId}/ride/{bookingId}/location.
type RideLocation struct {
	BookingID string `json:"bookingId"`
	DriverID  string `json:"driverId"`
	Coordinates
	Timestamp string `json:"timestamp"`
}
