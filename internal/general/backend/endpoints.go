package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/domain/geo"
	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/contracts"
)

// Validate asks the auth backend who the cookie/bearer belongs to.
// A response with loggedIn=false yields ErrUnauthorized.
func (c *Client) Validate(ctx context.Context) (driver.Identity, error) {
	var resp contracts.ValidateResponse
	if err := c.do(ctx, http.MethodGet, c.ep.AuthURL+"/validate", nil, &resp); err != nil {
		return driver.Identity{}, err
	}
	if !resp.LoggedIn {
		return driver.Identity{}, ErrUnauthorized
	}
	return driver.NewIdentity(resp.UserID.String(), resp.Name, resp.User, driver.ParseRole(resp.Role))
}

// Signout ends the backend session behind the cookie/bearer.
func (c *Client) Signout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.ep.AuthURL+"/signout", struct{}{}, nil)
}

// ActiveForDriver returns the driver's active booking. 404 maps to
// ErrNoActiveBooking, as does a 2xx with an empty booking id.
func (c *Client) ActiveForDriver(ctx context.Context, driverID string) (ride.ActiveBooking, error) {
	var resp contracts.ActiveBookingResponse
	err := c.do(ctx, http.MethodGet, c.ep.BookingURL+"/active/driver/"+seg(driverID), nil, &resp)
	if IsStatus(err, http.StatusNotFound) {
		return ride.ActiveBooking{}, ErrNoActiveBooking
	}
	if err != nil {
		return ride.ActiveBooking{}, err
	}

	id := strings.TrimSpace(resp.BookingID.String())
	if id == "" {
		return ride.ActiveBooking{}, ErrNoActiveBooking
	}
	status, err := ride.ParseStatus(resp.BookingStatus)
	if err != nil {
		return ride.ActiveBooking{}, fmt.Errorf("booking %s: %w", id, err)
	}
	return ride.ActiveBooking{BookingID: id, Status: status}, nil
}

// UpdateBookingStatus moves the booking to next. otp is sent only when set.
func (c *Client) UpdateBookingStatus(ctx context.Context, driverID, bookingID string, next ride.BookingStatus, otp string) error {
	req := contracts.UpdateStatusRequest{
		DriverID:      driverID,
		BookingStatus: next.String(),
		OTP:           strings.TrimSpace(otp),
	}
	return c.do(ctx, http.MethodPut, c.ep.BookingURL+"/"+seg(bookingID)+"/updateStatus", req, nil)
}

// RideDetails returns the booking details document as-is.
func (c *Client) RideDetails(ctx context.Context, driverID, bookingID string) (json.RawMessage, error) {
	var out json.RawMessage
	req := contracts.RideDetailsRequest{UserID: driverID, Role: string(driver.RoleDriver)}
	if err := c.do(ctx, http.MethodPost, c.ep.BookingURL+"/details/"+seg(bookingID), req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RideHistory returns the driver's most recent bookings page as-is.
func (c *Client) RideHistory(ctx context.Context, driverID string, pageSize int) (json.RawMessage, error) {
	q := url.Values{"pageSize": {strconv.Itoa(pageSize)}}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.ep.BookingURL+"/driver/"+seg(driverID)+"/all-booking?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Earnings returns fare analytics between two calendar days, inclusive.
func (c *Client) Earnings(ctx context.Context, from, to time.Time) (json.RawMessage, error) {
	q := url.Values{
		"fromDate": {from.Format(time.DateOnly)},
		"toDate":   {to.Format(time.DateOnly)},
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.ep.BookingURL+"/fare/analytics?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostLocation reports the driver's position to the location backend.
func (c *Client) PostLocation(ctx context.Context, driverID string, s geo.Sample) error {
	req := contracts.Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
	return c.do(ctx, http.MethodPost, c.ep.LocationURL+"/driver/"+seg(driverID)+"/location", req, nil)
}

// Snapshot posts the idle-cadence location snapshot.
func (c *Client) Snapshot(ctx context.Context, driverID string, s geo.Sample) error {
	req := contracts.LocationSnapshot{
		DriverID:    driverID,
		Coordinates: contracts.Coordinates{Latitude: s.Latitude, Longitude: s.Longitude},
		Geohash:     s.Geohash(),
		Timestamp:   s.CapturedAt.UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPost, c.ep.DriverURL+"/location/snapshot", req, nil)
}
