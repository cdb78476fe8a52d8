package service

import (
	"context"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/ports"
	"ride-driver/internal/software/booking"
	"ride-driver/internal/software/location"
	"ride-driver/internal/software/presence"
	"ride-driver/internal/software/session"
)

const (
	toastStarted   = "Passenger onboard, drive safe!"
	toastCompleted = "Ride completed. Great job!"
)

// RealtimeInputs reads the connect gate from the stores on every call.
func RealtimeInputs(sess *session.Store, pres *presence.Store, book *booking.Store) func() websocket.Inputs {
	return func() websocket.Inputs {
		cur := sess.Current()
		return websocket.Inputs{
			DriverID:   cur.DriverID,
			SessionOK:  cur.CanConnect(),
			Online:     pres.Online(),
			RideActive: book.Current().Active(),
		}
	}
}

// CadenceTarget derives what the location cadence should follow.
func CadenceTarget(sess *session.Store, pres *presence.Store, book *booking.Store) func() location.Target {
	return func() location.Target {
		cur := sess.Current()
		t := location.Target{Online: pres.Online(), BookingID: book.Current().BookingID}
		if cur.CanConnect() {
			t.DriverID = cur.DriverID
		}
		return t
	}
}

func (s *Service) wire() {
	s.session.OnChange(s.onSession)
	s.presence.OnChange(func(bool) { s.resync() })
	s.booking.OnChange(s.onBooking)
	s.realtime.OnStateChange(s.onConnection)

	s.subs = append(s.subs,
		s.bus.On(ride.EventRideRequest, s.onRideRequest),
		s.bus.On(ride.EventRideCancelled, s.onRideCancelled),
		s.bus.On(ride.EventRideStarted, s.onRideStarted),
		s.bus.On(ride.EventRideCompleted, s.onRideCompleted),
	)
}

func (s *Service) resync() {
	s.realtime.Reconcile()
	s.cadence.Sync(s.ctx)
}

func (s *Service) onSession(sess driver.Session) {
	s.mu.Lock()
	gained := sess.CanConnect() && !s.prevAuth
	lost := !sess.Authenticated && !sess.Loading && s.prevAuth
	driverID := sess.DriverID
	if lost {
		driverID = s.prevDriver
	}
	s.prevAuth = sess.CanConnect()
	s.prevDriver = sess.DriverID
	s.mu.Unlock()

	ctx := logger.WithDriverID(s.ctx, driverID)
	switch {
	case gained:
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		if err := s.booking.Fetch(fctx, sess.DriverID); err != nil {
			s.log.Warn(ctx, "active_booking_fetch_failed", "could not load active booking", map[string]any{"error": err.Error()})
		}
		cancel()
	case lost:
		s.log.Info(ctx, "session_lost", "session ended; going offline", nil)
		if s.presence.Online() && driverID != "" {
			if err := s.announce(ctx, driverID, driver.DriverStatusOffline, ""); err != nil {
				s.log.Error(ctx, "driver_status_publish_failed", "failed to publish OFFLINE status", err, nil)
			}
		}
		s.presence.ForceOffline()
		s.booking.Clear(ctx)
		for _, p := range s.presenter.Prompts() {
			s.presenter.Resolve(p.BookingID)
		}
	}
	s.resync()
}

func (s *Service) onConnection(state websocket.State) {
	s.mu.Lock()
	prev := s.connState
	s.connState = state
	s.connSince = time.Now()
	s.mu.Unlock()

	s.log.Debug(s.ctx, "realtime_state_changed", "realtime connection state changed", map[string]any{
		"from": prev,
		"to":   state,
	})
}

// connection returns the last recorded realtime state and when it began.
func (s *Service) connection() (websocket.State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState, s.connSince
}

func (s *Service) onBooking(b ride.ActiveBooking) {
	s.resync()

	if !s.presence.Online() {
		return
	}
	sess := s.session.Current()
	if !sess.CanConnect() {
		return
	}
	ctx := logger.WithBookingID(logger.WithDriverID(s.ctx, sess.DriverID), b.BookingID)
	if err := s.announce(ctx, sess.DriverID, driver.StatusFor(true, b.Active()), b.BookingID); err != nil {
		s.log.Error(ctx, "driver_status_publish_failed", "failed to publish driver status", err, nil)
	}
}

func (s *Service) onRideRequest(ctx context.Context, ev ride.Event) {
	p := s.presenter.Prompt(ctx, ev)
	s.log.Info(ctx, "ride_request_shown", "ride request awaiting driver decision", map[string]any{
		"passenger": p.Passenger.Name,
		"fare":      p.Fare,
		"pickup":    p.Pickup.Address,
	})
}

func (s *Service) onRideCancelled(ctx context.Context, ev ride.Event) {
	s.presenter.Resolve(ev.BookingID)
	s.presenter.Toast(ctx, ports.ToastError, ev.Reason)
	s.booking.ApplyEvent(ctx, ev)
}

func (s *Service) onRideStarted(ctx context.Context, ev ride.Event) {
	s.presenter.Toast(ctx, ports.ToastSuccess, toastStarted)
	s.booking.ApplyEvent(ctx, ev)
}

func (s *Service) onRideCompleted(ctx context.Context, ev ride.Event) {
	s.presenter.Toast(ctx, ports.ToastInfo, toastCompleted)
	s.booking.ApplyEvent(ctx, ev)
}
