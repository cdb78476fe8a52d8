package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/software/booking"
	"ride-driver/internal/software/dispatch/service"
	"ride-driver/internal/software/notify"
	"ride-driver/internal/software/presence"
)

type fakeDispatch struct {
	onlineErr  error
	offlineErr error
	respondErr error
	advanceErr error
	detailsErr error
	historyErr error

	pageSizes []int
	ranges    []string

	responded map[string]bool
	advanced  []string
	loggedOut bool
	retried   bool
}

func (f *fakeDispatch) Snapshot() service.Snapshot {
	return service.Snapshot{Connection: websocket.StateConnected, Online: true}
}

func (f *fakeDispatch) Notifications() service.Notifications {
	return service.Notifications{Toasts: []notify.Toast{{Message: "hi"}}}
}

func (f *fakeDispatch) GoOnline(context.Context) error  { return f.onlineErr }
func (f *fakeDispatch) GoOffline(context.Context) error { return f.offlineErr }

func (f *fakeDispatch) RespondToRide(_ context.Context, bookingID string, accept bool) (notify.Prompt, error) {
	if f.respondErr != nil {
		return notify.Prompt{}, f.respondErr
	}
	if f.responded == nil {
		f.responded = map[string]bool{}
	}
	f.responded[bookingID] = accept
	return notify.Prompt{BookingID: bookingID, Fare: 120}, nil
}

func (f *fakeDispatch) AdvanceRide(_ context.Context, next, otp string) (ride.ActiveBooking, error) {
	f.advanced = append(f.advanced, next+"/"+otp)
	return ride.ActiveBooking{BookingID: "b1", Status: ride.BookingStatus(next)}, f.advanceErr
}

func (f *fakeDispatch) RideDetails(_ context.Context, bookingID string) (json.RawMessage, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return json.RawMessage(`{"bookingId":"` + bookingID + `"}`), nil
}

func (f *fakeDispatch) RideHistory(_ context.Context, pageSize int) (json.RawMessage, error) {
	f.pageSizes = append(f.pageSizes, pageSize)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return json.RawMessage(`{"bookingList":[]}`), nil
}

func (f *fakeDispatch) Earnings(_ context.Context, rangeName string) (json.RawMessage, error) {
	f.ranges = append(f.ranges, rangeName)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return json.RawMessage(`{"totalEarnings":540}`), nil
}

func (f *fakeDispatch) ValidateSession(context.Context) error { return nil }
func (f *fakeDispatch) Logout(context.Context)                { f.loggedOut = true }
func (f *fakeDispatch) RetryLocation(context.Context)         { f.retried = true }

func serve(f *fakeDispatch, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewControlHandler(f, logger.Nop()).RegisterRoutes(mux)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestPresenceRoutes(t *testing.T) {
	rec := serve(&fakeDispatch{}, http.MethodPost, "/online", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connection":"CONNECTED"`)

	rec = serve(&fakeDispatch{onlineErr: service.ErrNotAuthenticated}, http.MethodPost, "/online", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(&fakeDispatch{offlineErr: presence.ErrRideInProgress}, http.MethodPost, "/offline", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You cannot go offline during an active ride.", errorOf(t, rec))

	rec = serve(&fakeDispatch{}, http.MethodGet, "/online", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRespondRoutes(t *testing.T) {
	f := &fakeDispatch{}
	rec := serve(f, http.MethodPost, "/rides/b1/accept", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"b1": true}, f.responded)

	rec = serve(f, http.MethodPost, "/rides/b2/decline", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.responded["b2"])

	cases := map[error]int{
		service.ErrNoPendingPrompt:       http.StatusNotFound,
		websocket.ErrNotConnected:        http.StatusServiceUnavailable,
		service.ErrNotAuthenticated:      http.StatusUnauthorized,
		errors.New("booking store gone"): http.StatusInternalServerError,
	}
	for err, code := range cases {
		rec := serve(&fakeDispatch{respondErr: err}, http.MethodPost, "/rides/b1/accept", "")
		assert.Equal(t, code, rec.Code, err.Error())
	}
}

func TestAdvanceRoute(t *testing.T) {
	f := &fakeDispatch{}
	rec := serve(f, http.MethodPost, "/rides/active/status", `{"status":"IN_RIDE","otp":" 1234 "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"IN_RIDE/1234"}, f.advanced)

	rec = serve(f, http.MethodPost, "/rides/active/status", `{"status":"IN_RIDE","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(&fakeDispatch{advanceErr: booking.ErrOTPRequired}, http.MethodPost, "/rides/active/status", `{"status":"IN_RIDE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(&fakeDispatch{advanceErr: booking.ErrNoActiveBooking}, http.MethodPost, "/rides/active/status", `{"status":"ARRIVED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/rides/active/status", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	mux := http.NewServeMux()
	NewControlHandler(f, nil).RegisterRoutes(mux)
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDetailsAndMisc(t *testing.T) {
	f := &fakeDispatch{}
	rec := serve(f, http.MethodGet, "/rides/b7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookingId":"b7"}`, rec.Body.String())

	rec = serve(f, http.MethodGet, "/notifications", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"hi"`)

	rec = serve(f, http.MethodPost, "/session/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.loggedOut)

	rec = serve(f, http.MethodPost, "/location/retry", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.retried)

	rec = serve(f, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHistoryAndEarningsRoutes(t *testing.T) {
	f := &fakeDispatch{}
	rec := serve(f, http.MethodGet, "/rides/history?pageSize=10", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookingList":[]}`, rec.Body.String())

	rec = serve(f, http.MethodGet, "/rides/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{10, 0}, f.pageSizes)

	rec = serve(f, http.MethodGet, "/rides/history?pageSize=-2", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f, http.MethodGet, "/earnings?range=7d", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalEarnings":540}`, rec.Body.String())
	assert.Equal(t, []string{"7d"}, f.ranges)

	cases := map[error]int{
		ride.ErrInvalidRange:          http.StatusBadRequest,
		service.ErrNotAuthenticated:   http.StatusUnauthorized,
		service.ErrHistoryUnavailable: http.StatusServiceUnavailable,
		errors.New("backend 500"):     http.StatusBadGateway,
	}
	for err, code := range cases {
		rec := serve(&fakeDispatch{historyErr: err}, http.MethodGet, "/earnings?range=year", "")
		assert.Equal(t, code, rec.Code, err.Error())
	}
}
