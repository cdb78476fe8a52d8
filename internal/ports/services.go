package ports

import (
	"context"
	"encoding/json"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/geo"
	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/contracts"
)

// ----- Outbound backends -----

type AuthBackend interface {
	Validate(ctx context.Context) (driver.Identity, error)
	Signout(ctx context.Context) error
}

type BookingBackend interface {
	ActiveForDriver(ctx context.Context, driverID string) (ride.ActiveBooking, error)
	UpdateBookingStatus(ctx context.Context, driverID, bookingID string, next ride.BookingStatus, otp string) error
	RideDetails(ctx context.Context, driverID, bookingID string) (json.RawMessage, error)
}

// HistoryBackend serves the driver's past rides and fare analytics. Bodies
// are passed through untouched.
type HistoryBackend interface {
	RideHistory(ctx context.Context, driverID string, pageSize int) (json.RawMessage, error)
	Earnings(ctx context.Context, from, to time.Time) (json.RawMessage, error)
}

type LocationBackend interface {
	PostLocation(ctx context.Context, driverID string, s geo.Sample) error
	Snapshot(ctx context.Context, driverID string, s geo.Sample) error
}

// StatusPublisher announces driver availability to the dispatch side.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg contracts.DriverStatusMessage) error
}

// ----- Device -----

// Geolocator is a one-shot position source. Implementations must honor ctx.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (geo.Sample, error)
}

// ----- Realtime -----

// RideLocationSender publishes in-ride samples over the realtime channel.
type RideLocationSender interface {
	PublishLocation(ctx context.Context, bookingID string, s geo.Sample) error
}

// ----- Presentation -----

type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastInfo    ToastLevel = "info"
	ToastWarn    ToastLevel = "warn"
	ToastError   ToastLevel = "error"
)

// Notifier shows transient messages to the driver.
type Notifier interface {
	Toast(ctx context.Context, level ToastLevel, msg string)
}
