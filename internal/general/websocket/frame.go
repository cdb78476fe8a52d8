package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/contracts"
)

var (
	ErrMalformedFrame = errors.New("malformed realtime frame")
	ErrUnknownType    = errors.New("unknown realtime message type")
)

// ParseRideFrame turns one inbound text frame into a normalized ride event.
// The ride payload may be nested under "data" or sit at the top level.
func ParseRideFrame(raw []byte) (ride.Event, error) {
	var outer contracts.Frame
	if err := json.Unmarshal(raw, &outer); err != nil {
		return ride.Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var msg contracts.RideMessage
	body := raw
	if d := bytes.TrimSpace(outer.Data); len(d) > 0 && d[0] == '{' {
		body = d
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return ride.Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	typ := strings.TrimSpace(outer.Type)
	if typ == "" {
		typ = msg.Type
	}
	et, err := ride.ParseEventType(typ)
	if err != nil {
		return ride.Event{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	ev := ride.Event{
		Type:      et,
		BookingID: msg.BookingID.String(),
		Passenger: ride.Passenger{ID: msg.PassengerID.String(), Name: strings.TrimSpace(msg.PassengerName)},
		Reason:    strings.TrimSpace(msg.Reason),
	}
	if p := msg.PickupLocation; p != nil {
		ev.Pickup = ride.Place{Address: p.PickupAddress, Latitude: deref(p.Latitude), Longitude: deref(p.Longitude)}
	}
	if d := msg.DropLocation; d != nil {
		ev.Drop = ride.Place{Address: d.DropAddress, Latitude: deref(d.Latitude), Longitude: deref(d.Longitude)}
	}
	if fare, ok := msg.Fare.Float(); ok {
		ev.Fare = fare
	}

	if err := ev.Normalize(); err != nil {
		return ride.Event{}, err
	}
	return ev, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
