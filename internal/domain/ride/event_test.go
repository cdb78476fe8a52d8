package ride

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventNormalizeDefaults(t *testing.T) {
	e := Event{Type: EventRideRequest, BookingID: " b1 "}
	require.NoError(t, e.Normalize())

	assert.Equal(t, "b1", e.BookingID)
	assert.Equal(t, DefaultPassengerName, e.Passenger.Name)
	assert.Equal(t, DefaultPassengerID, e.Passenger.ID)
	assert.False(t, e.ReceivedAt.IsZero())

	c := Event{Type: EventRideCancelled, BookingID: "b1"}
	require.NoError(t, c.Normalize())
	assert.Equal(t, DefaultCancelReason, c.Reason)
}

func TestEventNormalizeRejects(t *testing.T) {
	e := Event{Type: "UNKNOWN_TAG", BookingID: "b1"}
	assert.ErrorIs(t, e.Normalize(), ErrInvalidEventType)

	e = Event{Type: EventRideStarted}
	assert.ErrorIs(t, e.Normalize(), ErrMissingBookingID)
}

func TestBookingStatusTransitions(t *testing.T) {
	path := []BookingStatus{StatusAssigningDriver, StatusScheduled, StatusArrived, StatusInRide, StatusCompleted}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransitionTo(path[i+1]), "%s -> %s", path[i], path[i+1])
		assert.Equal(t, path[i+1], path[i].Next())
	}

	assert.False(t, StatusScheduled.CanTransitionTo(StatusInRide))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusScheduled))
	assert.False(t, StatusNone.CanTransitionTo(StatusScheduled))
	assert.True(t, StatusInRide.RequiresOTP())

	s, err := ParseStatus(" in_ride ")
	require.NoError(t, err)
	assert.Equal(t, StatusInRide, s)

	_, err = ParseStatus("EN_ROUTE")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestActiveBookingConsistency(t *testing.T) {
	assert.True(t, ActiveBooking{}.Consistent())
	assert.False(t, ActiveBooking{Status: StatusScheduled}.Consistent())
	assert.True(t, ActiveBooking{BookingID: "b", Status: StatusScheduled}.Active())
}

func TestEarningsRangeBounds(t *testing.T) {
	now := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	cases := map[string]time.Time{
		"7d":    day(time.March, 8),
		"":      day(time.February, 14),
		"MONTH": day(time.March, 1),
		"year":  day(time.January, 1),
	}
	for in, wantFrom := range cases {
		r, err := ParseEarningsRange(in)
		require.NoError(t, err, in)
		from, to := r.Bounds(now)
		assert.Equal(t, wantFrom, from, in)
		assert.Equal(t, day(time.March, 15), to, in)
	}

	_, err := ParseEarningsRange("decade")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
