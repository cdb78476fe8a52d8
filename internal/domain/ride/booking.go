package ride

import "time"

// ActiveBooking is the driver's current booking. The zero value means none.
type ActiveBooking struct {
	BookingID string        `json:"booking_id"`
	Status    BookingStatus `json:"booking_status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Active reports whether the driver is on (or assigned to) a ride.
func (b ActiveBooking) Active() bool {
	return b.BookingID != ""
}

// Consistent holds when a status is never set without a booking id.
func (b ActiveBooking) Consistent() bool {
	return b.Status == StatusNone || b.BookingID != ""
}
