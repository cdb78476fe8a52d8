package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func request(id string) ride.Event {
	ev := ride.Event{Type: ride.EventRideRequest, BookingID: id, Fare: 120}
	_ = ev.Normalize()
	return ev
}

func TestPromptExpiresWithoutResponse(t *testing.T) {
	p := NewPresenter(logger.Nop(), 30*time.Millisecond, 0)
	defer p.Close()

	pr := p.Prompt(context.Background(), request("b1"))
	assert.Equal(t, "Passenger", pr.Passenger.Name)

	_, ok := p.Pending("b1")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := p.Pending("b1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestResolveStopsCountdown(t *testing.T) {
	p := NewPresenter(logger.Nop(), time.Hour, 0)
	defer p.Close()

	p.Prompt(context.Background(), request("b1"))
	p.Prompt(context.Background(), request("b2"))
	assert.Len(t, p.Prompts(), 2)

	got, ok := p.Resolve("b1")
	require.True(t, ok)
	assert.Equal(t, 120.0, got.Fare)

	_, ok = p.Resolve("b1")
	assert.False(t, ok)
	assert.Len(t, p.Prompts(), 1)
}

func TestRepeatedRequestRestartsCountdown(t *testing.T) {
	p := NewPresenter(logger.Nop(), 80*time.Millisecond, 0)
	defer p.Close()

	p.Prompt(context.Background(), request("b1"))
	time.Sleep(50 * time.Millisecond)
	p.Prompt(context.Background(), request("b1"))
	time.Sleep(50 * time.Millisecond)

	_, ok := p.Pending("b1")
	assert.True(t, ok)
}

func TestToastHistoryIsBounded(t *testing.T) {
	p := NewPresenter(logger.Nop(), 0, 3)
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Toast(context.Background(), ports.ToastInfo, fmt.Sprintf("t%d", i))
	}
	recent := p.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "t2", recent[0].Message)
	assert.Equal(t, "t4", recent[2].Message)
	assert.NotEmpty(t, recent[0].ID)
}
