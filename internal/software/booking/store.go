// Package booking owns the driver's active booking: fetched from the booking
// backend, set optimistically on accept and moved by realtime ride events.
package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/backend"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

var (
	ErrFetchInFlight     = errors.New("active booking fetch already in flight")
	ErrNoActiveBooking   = errors.New("no active booking")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrOTPRequired       = errors.New("otp is required to start the ride")
	ErrClosed            = errors.New("booking store closed")
)

const journalTimeout = 5 * time.Second

type Option func(*Store)

// WithJournal records every applied change.
func WithJournal(j ports.BookingJournal) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single writer of ride.ActiveBooking. Every write is stamped
// and a write older than the current state is discarded, so a late
// confirmation fetch can never undo a newer cancellation.
type Store struct {
	backend      ports.BookingBackend
	journal      ports.BookingJournal
	log          *logger.Logger
	confirmDelay time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	mu        sync.Mutex
	state     ride.ActiveBooking
	driverID  string
	confirm   *time.Timer
	inflight  chan struct{} // closed when the running fetch returns
	listeners []func(ride.ActiveBooking)
	closed    bool
}

func NewStore(b ports.BookingBackend, log *logger.Logger, confirmDelay time.Duration, opts ...Option) *Store {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend:      b,
		log:          log,
		confirmDelay: confirmDelay,
		now:          func() time.Time { return time.Now().UTC() },
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Current returns a copy of the active booking.
func (s *Store) Current() ride.ActiveBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to run after every applied change, outside the lock.
func (s *Store) OnChange(fn func(ride.ActiveBooking)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Fetch loads the active booking from the backend. 404 clears the state and
// returns nil. Any other failure also clears the state and is returned.
// While a fetch is running, further calls return ErrFetchInFlight.
func (s *Store) Fetch(ctx context.Context, driverID string) error {
	s.mu.Lock()
	if s.inflight != nil {
		s.mu.Unlock()
		return ErrFetchInFlight
	}
	done := make(chan struct{})
	s.inflight = done
	s.driverID = driverID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()
		close(done)
	}()

	started := s.now()
	ctx = logger.WithDriverID(ctx, driverID)

	b, err := s.backend.ActiveForDriver(ctx, driverID)
	switch {
	case errors.Is(err, backend.ErrNoActiveBooking):
		s.apply(ctx, ride.ActiveBooking{}, started, "fetch", "")
		return nil
	case err != nil:
		s.log.Error(ctx, "active_booking_fetch_failed", "clearing active booking after failed fetch", err, nil)
		s.apply(ctx, ride.ActiveBooking{}, started, "fetch", "")
		return fmt.Errorf("fetch active booking: %w", err)
	}

	s.apply(ctx, b, started, "fetch", "")
	return nil
}

// Accept sets the booking to SCHEDULED immediately and schedules one
// confirmation fetch after the confirm delay. A newer Accept replaces the
// pending confirmation.
func (s *Store) Accept(ctx context.Context, driverID, bookingID string) error {
	ctx = logger.WithBookingID(logger.WithDriverID(ctx, driverID), bookingID)
	stamp := s.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.driverID = driverID
	s.mu.Unlock()

	s.apply(ctx, ride.ActiveBooking{BookingID: bookingID, Status: ride.StatusScheduled}, stamp, "accept", "")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.stopConfirmLocked()
	s.wg.Add(1)
	s.confirm = time.AfterFunc(s.confirmDelay, func() {
		defer s.wg.Done()
		cctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.confirmFetch(cctx, driverID); err != nil {
			s.log.Debug(ctx, "accept_confirm_failed", "confirmation fetch failed", map[string]any{"error": err.Error()})
		}
	})
	return nil
}

// confirmFetch runs the confirmation fetch. A fetch already in flight was
// stamped before the accept and cannot confirm it, so wait for it to return
// and fetch once more.
func (s *Store) confirmFetch(ctx context.Context, driverID string) error {
	err := s.Fetch(ctx, driverID)
	if !errors.Is(err, ErrFetchInFlight) {
		return err
	}

	s.mu.Lock()
	running := s.inflight
	s.mu.Unlock()
	if running != nil {
		select {
		case <-running:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Fetch(ctx, driverID)
}

// ApplyEvent folds a realtime ride event into the active booking. Events for
// a booking other than the current one are ignored. Returns whether the
// event was applied.
func (s *Store) ApplyEvent(ctx context.Context, ev ride.Event) bool {
	ctx = logger.WithBookingID(ctx, ev.BookingID)
	stamp := s.now()

	var next ride.ActiveBooking
	switch ev.Type {
	case ride.EventRideStarted:
		next = ride.ActiveBooking{BookingID: ev.BookingID, Status: ride.StatusInRide}
	case ride.EventRideCompleted, ride.EventRideCancelled:
		next = ride.ActiveBooking{}
	default:
		return false
	}

	if !s.apply(ctx, next, stamp, "event", ev.BookingID) {
		s.log.Debug(ctx, "ride_event_ignored", "event does not match the active booking",
			map[string]any{"event_type": ev.Type, "active_booking": s.Current().BookingID})
		return false
	}
	return true
}

// UpdateStatus advances the active booking through the booking backend and
// applies the result. Reaching COMPLETED clears the booking.
func (s *Store) UpdateStatus(ctx context.Context, driverID string, next ride.BookingStatus, otp string) error {
	cur := s.Current()
	if !cur.Active() {
		return ErrNoActiveBooking
	}
	if !cur.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next)
	}
	if next.RequiresOTP() && otp == "" {
		return ErrOTPRequired
	}

	ctx = logger.WithBookingID(logger.WithDriverID(ctx, driverID), cur.BookingID)
	stamp := s.now()
	if err := s.backend.UpdateBookingStatus(ctx, driverID, cur.BookingID, next, otp); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}

	result := ride.ActiveBooking{BookingID: cur.BookingID, Status: next}
	if next.Terminal() {
		result = ride.ActiveBooking{}
	}
	s.apply(ctx, result, stamp, "update", cur.BookingID)
	return nil
}

// Clear resets to no active booking.
func (s *Store) Clear(ctx context.Context) {
	s.apply(ctx, ride.ActiveBooking{}, s.now(), "clear", "")
}

// Close cancels the pending confirmation and waits for a running one.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopConfirmLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Store) stopConfirmLocked() {
	if s.confirm != nil && s.confirm.Stop() {
		s.wg.Done()
	}
	s.confirm = nil
}

// apply writes next if stamp is not older than the current state and, when
// expectID is set, the current booking is expectID. Listeners and the
// journal run after the lock is released.
func (s *Store) apply(ctx context.Context, next ride.ActiveBooking, stamp time.Time, source, expectID string) bool {
	s.mu.Lock()
	prev := s.state
	if stamp.Before(prev.UpdatedAt) {
		s.mu.Unlock()
		s.log.Debug(ctx, "active_booking_stale_write", "discarding write older than current state",
			map[string]any{"source": source, "stamp": stamp, "current": prev.UpdatedAt})
		return false
	}
	if expectID != "" && prev.BookingID != expectID {
		s.mu.Unlock()
		return false
	}

	next.UpdatedAt = stamp
	if next.BookingID == "" {
		next.Status = ride.StatusNone
		s.stopConfirmLocked()
	}
	s.state = next
	changed := prev.BookingID != next.BookingID || prev.Status != next.Status
	driverID := s.driverID
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if !changed {
		return true
	}

	s.log.Info(ctx, "active_booking_changed", "active booking updated", map[string]any{
		"source":      source,
		"from_id":     prev.BookingID,
		"from_status": prev.Status,
		"to_id":       next.BookingID,
		"to_status":   next.Status,
	})
	s.record(ctx, ports.BookingChange{
		DriverID:   driverID,
		BookingID:  firstNonEmpty(next.BookingID, prev.BookingID),
		FromStatus: prev.Status,
		ToStatus:   next.Status,
		Source:     source,
		At:         stamp,
	})
	for _, fn := range listeners {
		fn(next)
	}
	return true
}

func (s *Store) record(ctx context.Context, c ports.BookingChange) {
	if s.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := s.journal.Append(jctx, c); err != nil {
		s.log.Error(ctx, "booking_journal_append_failed", "failed to journal booking change", err, nil)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
