package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/software/dispatch/service"
	"ride-driver/internal/software/notify"
)

// Dispatch is what the control API needs from the dispatch service.
type Dispatch interface {
	Snapshot() service.Snapshot
	Notifications() service.Notifications
	GoOnline(ctx context.Context) error
	GoOffline(ctx context.Context) error
	RespondToRide(ctx context.Context, bookingID string, accept bool) (notify.Prompt, error)
	AdvanceRide(ctx context.Context, next, otp string) (ride.ActiveBooking, error)
	RideDetails(ctx context.Context, bookingID string) (json.RawMessage, error)
	RideHistory(ctx context.Context, pageSize int) (json.RawMessage, error)
	Earnings(ctx context.Context, rangeName string) (json.RawMessage, error)
	ValidateSession(ctx context.Context) error
	Logout(ctx context.Context)
	RetryLocation(ctx context.Context)
}

// ControlHandler exposes the driver's gestures over local HTTP.
type ControlHandler struct {
	svc    Dispatch
	logger *logger.Logger
}

func NewControlHandler(svc Dispatch, log *logger.Logger) *ControlHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ControlHandler{svc: svc, logger: log}
}

func (handler *ControlHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", handler.handleStatus)
	mux.HandleFunc("POST /online", handler.handleGoOnline)
	mux.HandleFunc("POST /offline", handler.handleGoOffline)

	mux.HandleFunc("POST /rides/{booking_id}/accept", handler.handleRespond(true))
	mux.HandleFunc("POST /rides/{booking_id}/decline", handler.handleRespond(false))
	mux.HandleFunc("POST /rides/active/status", handler.handleAdvanceRide)
	mux.HandleFunc("GET /rides/history", handler.handleRideHistory)
	mux.HandleFunc("GET /rides/{booking_id}", handler.handleRideDetails)
	mux.HandleFunc("GET /earnings", handler.handleEarnings)

	mux.HandleFunc("POST /session/validate", handler.handleValidateSession)
	mux.HandleFunc("POST /session/logout", handler.handleLogout)
	mux.HandleFunc("POST /location/retry", handler.handleRetryLocation)
	mux.HandleFunc("GET /notifications", handler.handleNotifications)

	mux.HandleFunc("GET /health", handler.handleHealth)
}

// ----- general helpers -----

// jsonResponse encodes data first so a marshal failure can still set the status.
func (handler *ControlHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *ControlHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	switch {
	case status >= 500:
		handler.logger.Error(ctx, "http_internal_error", msg, err, nil)
	case status == http.StatusBadRequest:
		handler.logger.Warn(ctx, "validation_failed", msg, nil)
	default:
		handler.logger.Info(ctx, "request_rejected", msg, map[string]any{"status": status})
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// rawResponse writes a backend document through unchanged.
func (handler *ControlHandler) rawResponse(w http.ResponseWriter, body json.RawMessage) {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// withReqID takes X-Request-ID or makes one up and puts it in the log context.
func (handler *ControlHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return logger.WithRequestID(ctx, reqID)
}

func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
