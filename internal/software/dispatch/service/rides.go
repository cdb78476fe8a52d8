package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/contracts"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/ports"
	"ride-driver/internal/software/notify"
)

const (
	toastNotConnected = "Not connected to the server. Please go online again."
	toastSendFailed   = "Could not send your response. Please try again."
	toastAccepted     = "Ride accepted. Head to the pickup point."
	toastDeclined     = "Ride declined."
)

// RespondToRide sends the driver's decision on a pending ride request. An
// accepted ride becomes the active booking right away and is confirmed by
// the booking store shortly after.
func (s *Service) RespondToRide(ctx context.Context, bookingID string, accept bool) (notify.Prompt, error) {
	ctx = logger.WithBookingID(ctx, bookingID)

	prompt, ok := s.presenter.Pending(bookingID)
	if !ok {
		return notify.Prompt{}, ErrNoPendingPrompt
	}
	sess := s.session.Current()
	if !sess.CanConnect() {
		return notify.Prompt{}, ErrNotAuthenticated
	}
	ctx = logger.WithDriverID(ctx, sess.DriverID)

	if s.realtime.State() != websocket.StateConnected {
		s.presenter.Toast(ctx, ports.ToastError, toastNotConnected)
		return notify.Prompt{}, websocket.ErrNotConnected
	}

	msg := contracts.RideResponse{
		Response:    accept,
		BookingID:   bookingID,
		DriverID:    sess.DriverID,
		PassengerID: prompt.Passenger.ID,
		Envelope: contracts.Envelope{
			CorrelationID: uuid.NewString(),
			Producer:      producerName,
			SentAt:        time.Now().UTC(),
		},
	}
	if err := s.realtime.Send(ctx, contracts.RideResponseDestination(sess.DriverID), msg); err != nil {
		text := toastSendFailed
		if errors.Is(err, websocket.ErrNotConnected) {
			text = toastNotConnected
		}
		s.presenter.Toast(ctx, ports.ToastError, text)
		s.log.Error(ctx, "ride_response_failed", "failed to send ride response", err,
			map[string]any{"accept": accept})
		return notify.Prompt{}, err
	}
	s.presenter.Resolve(bookingID)

	s.log.Info(ctx, "ride_response_sent", "ride response sent",
		map[string]any{"accept": accept, "correlation_id": msg.CorrelationID})

	if !accept {
		s.presenter.Toast(ctx, ports.ToastInfo, toastDeclined)
		return prompt, nil
	}
	if err := s.booking.Accept(ctx, sess.DriverID, bookingID); err != nil {
		return prompt, fmt.Errorf("accept booking: %w", err)
	}
	s.presenter.Toast(ctx, ports.ToastSuccess, toastAccepted)
	return prompt, nil
}

// AdvanceRide moves the active booking to next (ARRIVED, IN_RIDE with the
// passenger's OTP, COMPLETED). An empty next takes the booking's next step.
func (s *Service) AdvanceRide(ctx context.Context, next, otp string) (ride.ActiveBooking, error) {
	sess := s.session.Current()
	if !sess.CanConnect() {
		return ride.ActiveBooking{}, ErrNotAuthenticated
	}

	cur := s.booking.Current()
	status := cur.Status.Next()
	if strings.TrimSpace(next) != "" {
		parsed, err := ride.ParseStatus(next)
		if err != nil || parsed == ride.StatusNone {
			return ride.ActiveBooking{}, ride.ErrInvalidStatus
		}
		status = parsed
	}
	ctx = logger.WithBookingID(logger.WithDriverID(ctx, sess.DriverID), cur.BookingID)
	if err := s.booking.UpdateStatus(ctx, sess.DriverID, status, otp); err != nil {
		return s.booking.Current(), err
	}

	s.presenter.Toast(ctx, ports.ToastInfo, "Ride status updated to "+status.String()+".")
	return s.booking.Current(), nil
}
