package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/general/contracts"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
	"ride-driver/internal/software/presence"
)

const (
	toastOnlineFailed   = "Could not go online. Please try again."
	toastLockedOnline   = "You cannot go offline during an active ride."
	toastLocationFailed = "Could not share your location."
)

// GoOnline announces availability, then raises the online intent. The
// intent listener connects the realtime channel and starts the cadence.
func (s *Service) GoOnline(ctx context.Context) error {
	sess := s.session.Current()
	if !sess.CanConnect() {
		return ErrNotAuthenticated
	}
	ctx = logger.WithDriverID(ctx, sess.DriverID)
	if s.presence.Online() {
		return nil
	}

	onRide := s.booking.Current()
	if err := s.announce(ctx, sess.DriverID, driver.StatusFor(true, onRide.Active()), onRide.BookingID); err != nil {
		s.log.Error(ctx, "driver_go_online_failed", "failed to publish driver status", err, nil)
		s.presenter.Toast(ctx, ports.ToastError, toastOnlineFailed)
		return fmt.Errorf("%w: %v", ErrStatusPublish, err)
	}

	s.presence.GoOnline()

	if err := s.cadence.PostCurrent(ctx, sess.DriverID); err != nil {
		s.log.Warn(ctx, "initial_location_failed", "could not post initial location", map[string]any{"error": err.Error()})
		s.presenter.Toast(ctx, ports.ToastWarn, toastLocationFailed)
	}

	s.log.Info(ctx, "driver_online", "driver went online", nil)
	return nil
}

// GoOffline refuses while a booking is active. The OFFLINE announcement is
// best effort: a broker outage never keeps the driver online.
func (s *Service) GoOffline(ctx context.Context) error {
	sess := s.session.Current()
	ctx = logger.WithDriverID(ctx, sess.DriverID)

	if b := s.booking.Current(); b.Active() {
		s.presenter.Toast(ctx, ports.ToastWarn, toastLockedOnline)
		return presence.ErrRideInProgress
	}
	if !s.presence.Online() {
		return nil
	}

	if sess.DriverID != "" {
		if err := s.announce(ctx, sess.DriverID, driver.DriverStatusOffline, ""); err != nil {
			s.log.Error(ctx, "driver_status_publish_failed", "failed to publish OFFLINE status", err, nil)
		}
	}

	if err := s.presence.GoOffline(); err != nil {
		if errors.Is(err, presence.ErrRideInProgress) {
			s.presenter.Toast(ctx, ports.ToastWarn, toastLockedOnline)
		}
		return err
	}

	s.log.Info(ctx, "driver_offline", "driver went offline", nil)
	return nil
}

// announce publishes status unless it matches the last one published.
func (s *Service) announce(ctx context.Context, driverID string, status driver.DriverStatus, bookingID string) error {
	if s.status == nil {
		return nil
	}
	s.mu.Lock()
	same := s.lastStatus == status
	s.mu.Unlock()
	if same {
		return nil
	}

	err := s.status.PublishStatus(ctx, contracts.DriverStatusMessage{
		DriverID:  driverID,
		Status:    status.String(),
		BookingID: bookingID,
		Timestamp: time.Now().UTC(),
		Envelope:  contracts.Envelope{Producer: producerName},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()
	return nil
}
