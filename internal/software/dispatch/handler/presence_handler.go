package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-driver/internal/software/dispatch/service"
	"ride-driver/internal/software/presence"
)

const gestureTimeout = 15 * time.Second

// ----- Handler: GET /status -----

func (handler *ControlHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot())
}

// ----- Handler: POST /online -----

func (handler *ControlHandler) handleGoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	if err := handler.svc.GoOnline(ctx); err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
		case errors.Is(err, service.ErrStatusPublish):
			handler.httpError(ctx, w, http.StatusBadGateway, err.Error(), err)
		default:
			handler.httpError(ctx, w, http.StatusInternalServerError, "failed to go online", err)
		}
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot())
}

// ----- Handler: POST /offline -----

func (handler *ControlHandler) handleGoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	if err := handler.svc.GoOffline(ctx); err != nil {
		if errors.Is(err, presence.ErrRideInProgress) {
			handler.httpError(ctx, w, http.StatusConflict, "You cannot go offline during an active ride.", err)
			return
		}
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to go offline", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot())
}

// ----- Handler: POST /session/validate -----

func (handler *ControlHandler) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	ctx, cancel := context.WithTimeout(ctx, gestureTimeout)
	defer cancel()

	if err := handler.svc.ValidateSession(ctx); err != nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "session is not valid", err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot().Session)
}

// ----- Handler: POST /session/logout -----

func (handler *ControlHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.svc.Logout(ctx)
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot())
}

// ----- Handler: POST /location/retry -----

func (handler *ControlHandler) handleRetryLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.svc.RetryLocation(ctx)
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Snapshot().Location)
}

// ----- Handler: GET /notifications -----

func (handler *ControlHandler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Notifications())
}

// ----- Handler: GET /health -----

func (handler *ControlHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	snap := handler.svc.Snapshot()
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"status":     "ok",
		"connection": snap.Connection,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
