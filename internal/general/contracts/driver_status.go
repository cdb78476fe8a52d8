package contracts

import "time"

// DriverStatusMessage announces the driver's availability.
// Routing key: "driver.status.{driver_id}" on ExchangeDriverTopic.
type DriverStatusMessage struct {
	DriverID  string    `json:"driver_id"`
	Status    string    `json:"status"` // OFFLINE|AVAILABLE|BUSY
	BookingID string    `json:"booking_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
