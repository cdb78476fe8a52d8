// Package service ties the driver's stores, the realtime channel and the
// location cadence together and implements the driver's gestures.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/geo"
	"ride-driver/internal/general/eventbus"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/ports"
	"ride-driver/internal/software/booking"
	"ride-driver/internal/software/location"
	"ride-driver/internal/software/notify"
	"ride-driver/internal/software/presence"
	"ride-driver/internal/software/session"
)

const (
	producerName    = "driver-agent"
	fetchTimeout    = 10 * time.Second
	validateTimeout = 10 * time.Second
)

var (
	ErrNotAuthenticated = errors.New("driver session is not authenticated")
	ErrNoPendingPrompt  = errors.New("no pending ride request for this booking")
	ErrStatusPublish    = errors.New("driver status could not be published")
)

// Realtime is the part of the connection manager the service drives.
type Realtime interface {
	Reconcile()
	State() websocket.State
	OnStateChange(fn func(websocket.State))
	Send(ctx context.Context, destination string, payload any) error
}

// Cadence is the part of the location controller the service drives.
type Cadence interface {
	Sync(ctx context.Context)
	Retry(ctx context.Context)
	PostCurrent(ctx context.Context, driverID string) error
	Mode() location.Mode
	Interval() time.Duration
	Err() error
	LastSample() (geo.Sample, bool)
}

type Deps struct {
	Session   *session.Store
	Presence  *presence.Store
	Booking   *booking.Store
	Rides     ports.BookingBackend
	History   ports.HistoryBackend // optional
	Realtime  Realtime
	Cadence   Cadence
	Presenter *notify.Presenter
	Bus       *eventbus.Bus
	Status    ports.StatusPublisher // optional
	Log       *logger.Logger
}

type Service struct {
	session   *session.Store
	presence  *presence.Store
	booking   *booking.Store
	rides     ports.BookingBackend
	history   ports.HistoryBackend
	realtime  Realtime
	cadence   Cadence
	presenter *notify.Presenter
	bus       *eventbus.Bus
	status    ports.StatusPublisher
	log       *logger.Logger

	ctx  context.Context
	subs []*eventbus.Subscription

	mu         sync.Mutex
	prevAuth   bool
	prevDriver string
	lastStatus driver.DriverStatus
	connState  websocket.State
	connSince  time.Time
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		session:   d.Session,
		presence:  d.Presence,
		booking:   d.Booking,
		rides:     d.Rides,
		history:   d.History,
		realtime:  d.Realtime,
		cadence:   d.Cadence,
		presenter: d.Presenter,
		bus:       d.Bus,
		status:    d.Status,
		log:       d.Log,
		ctx:       context.Background(),
		connState: websocket.StateDisconnected,
	}
}

// Start subscribes the service to the stores and the bus, restores the
// cached session and validates it against the auth backend.
func (s *Service) Start(ctx context.Context) {
	s.ctx = ctx
	s.wire()

	s.session.Restore(ctx)
	vctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := s.session.Validate(vctx); err != nil {
		s.log.Info(ctx, "startup_session_invalid", "driver must sign in again", map[string]any{"error": err.Error()})
	}
}

// Close detaches the bus handlers. Store listeners stay registered; the
// stores are closed by their owner.
func (s *Service) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// ValidateSession re-checks the session with the auth backend.
func (s *Service) ValidateSession(ctx context.Context) error {
	return s.session.Validate(ctx)
}

// Logout drops the session; the session listener takes the driver offline.
func (s *Service) Logout(ctx context.Context) {
	s.session.Logout(ctx)
}

// RetryLocation clears a permission failure and resumes polling.
func (s *Service) RetryLocation(ctx context.Context) {
	s.cadence.Retry(ctx)
}

// RideDetails proxies the booking backend's detail view for bookingID.
func (s *Service) RideDetails(ctx context.Context, bookingID string) (json.RawMessage, error) {
	sess := s.session.Current()
	if !sess.CanConnect() {
		return nil, ErrNotAuthenticated
	}
	return s.rides.RideDetails(logger.WithBookingID(ctx, bookingID), sess.DriverID, bookingID)
}
