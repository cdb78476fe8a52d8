package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/geo"
	"ride-driver/internal/domain/ride"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Endpoints{
		AuthURL:     srv.URL + "/auth/",
		BookingURL:  srv.URL + "/booking",
		LocationURL: srv.URL + "/location",
		DriverURL:   srv.URL + "/driver",
	}, 2*time.Second, WithBearer("Bearer tok"))
}

func TestValidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"loggedIn":true,"user":"d@x.io","userId":42,"name":"Dana","role":"DRIVER"}`))
	})
	c := newTestClient(t, mux)

	id, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", id.DriverID)
	assert.Equal(t, "Dana", id.DisplayName)
	assert.Equal(t, driver.RoleDriver, id.Role)
}

func TestValidateLoggedOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"loggedIn":false}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Validate(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateRejectsPassenger(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"loggedIn":true,"userId":"p1","role":"PASSENGER"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Validate(context.Background())
	assert.ErrorIs(t, err, driver.ErrNotDriver)
}

func TestActiveForDriver(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /booking/active/driver/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "d1":
			_, _ = w.Write([]byte(`{"bookingId":"b7","bookingStatus":"ARRIVED"}`))
		case "d2":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	b, err := c.ActiveForDriver(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, ride.ActiveBooking{BookingID: "b7", Status: ride.StatusArrived}, b)

	_, err = c.ActiveForDriver(ctx, "d2")
	assert.ErrorIs(t, err, ErrNoActiveBooking)

	_, err = c.ActiveForDriver(ctx, "d3")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
}

func TestUpdateBookingStatusAndLocation(t *testing.T) {
	var gotStatus map[string]string
	var gotSnapshot map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /booking/{id}/updateStatus", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b1", r.PathValue("id"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotStatus))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /driver/location/snapshot", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotSnapshot))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.UpdateBookingStatus(ctx, "d1", "b1", ride.StatusInRide, " 1234 "))
	assert.Equal(t, map[string]string{"driverId": "d1", "bookingStatus": "IN_RIDE", "otp": "1234"}, gotStatus)

	s, err := geo.NewSample(57.64911, 10.40744)
	require.NoError(t, err)
	require.NoError(t, c.Snapshot(ctx, "d1", s))
	assert.Equal(t, "u4pruyd", gotSnapshot["geohash"])
	assert.Equal(t, "d1", gotSnapshot["driverId"])
}

func TestUnauthorizedMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /location/driver/{id}/location", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestClient(t, mux)

	err := c.PostLocation(context.Background(), "d1", geo.Sample{Latitude: 1, Longitude: 2})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestSignoutHistoryAndEarnings(t *testing.T) {
	var signedOut bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signout", func(w http.ResponseWriter, r *http.Request) {
		signedOut = true
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /booking/driver/{id}/all-booking", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "d1", r.PathValue("id"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"bookingList":[{"bookingId":"b1"}]}`))
	})
	mux.HandleFunc("GET /booking/fare/analytics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-02-14", r.URL.Query().Get("fromDate"))
		assert.Equal(t, "2024-03-15", r.URL.Query().Get("toDate"))
		_, _ = w.Write([]byte(`{"totalEarnings":540,"dailyEarnings":[]}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Signout(ctx))
	assert.True(t, signedOut)

	hist, err := c.RideHistory(ctx, "d1", 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookingList":[{"bookingId":"b1"}]}`, string(hist))

	from := time.Date(2024, time.February, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	earn, err := c.Earnings(ctx, from, to)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalEarnings":540,"dailyEarnings":[]}`, string(earn))
}
