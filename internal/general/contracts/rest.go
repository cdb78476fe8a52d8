package contracts

// ValidateResponse is GET {auth}/validate.
type ValidateResponse struct {
	LoggedIn bool       `json:"loggedIn"`
	User     string     `json:"user"` // email or username
	UserID   FlexString `json:"userId"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
}

// ActiveBookingResponse is GET {booking}/active/driver/{id}.
type ActiveBookingResponse struct {
	BookingID     FlexString `json:"bookingId"`
	BookingStatus string     `json:"bookingStatus"`
}

// UpdateStatusRequest is PUT {booking}/{bookingId}/updateStatus.
type UpdateStatusRequest struct {
	DriverID      string `json:"driverId"`
	BookingStatus string `json:"bookingStatus"`
	OTP           string `json:"otp,omitempty"`
}

// LocationSnapshot is POST {driver}/location/snapshot while idle.
type LocationSnapshot struct {
	DriverID string `json:"driverId"`
	Coordinates
	Geohash   string `json:"geohash"`
	Timestamp string `json:"timestamp"`
}

// RideDetailsRequest is POST {booking}/details/{bookingId}.
type RideDetailsRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
