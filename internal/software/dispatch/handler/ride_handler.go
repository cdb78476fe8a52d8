package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/backend"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/software/booking"
	"ride-driver/internal/software/dispatch/service"
)

// --- Request DTO (HTTP boundary) ---

type advanceRideRequest struct {
	Status string `json:"status"` // ARRIVED | IN_RIDE | COMPLETED; empty takes the next step
	OTP    string `json:"otp"`
}

// ----- Handler: POST /rides/{booking_id}/accept|decline -----

func (handler *ControlHandler) handleRespond(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := handler.withReqID(r.Context(), r)

		bookingID := strings.TrimSpace(r.PathValue("booking_id"))
		if bookingID == "" {
			handler.httpError(ctx, w, http.StatusBadRequest, "booking_id is required", nil)
			return
		}
		ctx = logger.WithBookingID(ctx, bookingID)
		ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
		defer cancel()

		prompt, err := handler.svc.RespondToRide(ctx, bookingID, accept)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNoPendingPrompt):
				handler.httpError(ctx, w, http.StatusNotFound, err.Error(), err)
			case errors.Is(err, service.ErrNotAuthenticated):
				handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
			case errors.Is(err, websocket.ErrNotConnected):
				handler.httpError(ctx, w, http.StatusServiceUnavailable, "not connected to the dispatch server", err)
			default:
				handler.httpError(ctx, w, http.StatusInternalServerError, "failed to respond to ride", err)
			}
			return
		}

		handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
			"accepted": accept,
			"prompt":   prompt,
			"booking":  handler.svc.Snapshot().Booking,
		})
	}
}

// ----- Handler: POST /rides/active/status -----

func (handler *ControlHandler) handleAdvanceRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	defer r.Body.Close()

	var req advanceRideRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	b, err := handler.svc.AdvanceRide(ctx, req.Status, strings.TrimSpace(req.OTP))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
		case errors.Is(err, booking.ErrNoActiveBooking):
			handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
		case errors.Is(err, ride.ErrInvalidStatus),
			errors.Is(err, booking.ErrInvalidTransition),
			errors.Is(err, booking.ErrOTPRequired):
			handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		default:
			handler.httpError(ctx, w, http.StatusBadGateway, "booking backend rejected the update", err)
		}
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, b)
}

// ----- Handler: GET /rides/{booking_id} -----

func (handler *ControlHandler) handleRideDetails(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	bookingID := strings.TrimSpace(r.PathValue("booking_id"))
	if bookingID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "booking_id is required", nil)
		return
	}
	ctx = logger.WithBookingID(ctx, bookingID)
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	details, err := handler.svc.RideDetails(ctx, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
		case backend.IsStatus(err, http.StatusNotFound):
			handler.httpError(ctx, w, http.StatusNotFound, "ride not found", err)
		default:
			handler.httpError(ctx, w, http.StatusBadGateway, "failed to load ride details", err)
		}
		return
	}

	handler.rawResponse(w, details)
}

// ----- Handler: GET /rides/history?pageSize=N -----

func (handler *ControlHandler) handleRideHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	pageSize := 0
	if v := strings.TrimSpace(r.URL.Query().Get("pageSize")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			handler.httpError(ctx, w, http.StatusBadRequest, "pageSize must be a positive integer", err)
			return
		}
		pageSize = n
	}
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	body, err := handler.svc.RideHistory(ctx, pageSize)
	if err != nil {
		handler.historyError(ctx, w, "failed to load ride history", err)
		return
	}
	handler.rawResponse(w, body)
}

// ----- Handler: GET /earnings?range=7d|30d|month|year -----

func (handler *ControlHandler) handleEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	body, err := handler.svc.Earnings(ctx, r.URL.Query().Get("range"))
	if err != nil {
		handler.historyError(ctx, w, "failed to load earnings", err)
		return
	}
	handler.rawResponse(w, body)
}

func (handler *ControlHandler) historyError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, ride.ErrInvalidRange):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, service.ErrHistoryUnavailable):
		handler.httpError(ctx, w, http.StatusServiceUnavailable, err.Error(), err)
	default:
		handler.httpError(ctx, w, http.StatusBadGateway, msg, err)
	}
}
