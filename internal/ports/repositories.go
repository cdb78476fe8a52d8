package ports

import (
	"context"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/ride"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionCache persists the last validated identity between agent restarts.
// Its content is never trusted until the auth backend confirms it.
type SessionCache interface {
	Load(ctx context.Context) (driver.Identity, bool, error)
	Save(ctx context.Context, id driver.Identity) error
	Delete(ctx context.Context) error
}

// BookingChange is one applied transition of the local active booking.
type BookingChange struct {
	DriverID   string
	BookingID  string
	FromStatus ride.BookingStatus
	ToStatus   ride.BookingStatus
	Source     string // fetch|accept|event|update|clear
	At         time.Time
}

// BookingJournal records applied active-booking changes.
type BookingJournal interface {
	Append(ctx context.Context, c BookingChange) error
}
