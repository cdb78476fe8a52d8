package location

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ride-driver/internal/domain/geo"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	snapshots atomic.Int32
	posts     atomic.Int32
	published atomic.Int32

	mu       sync.Mutex
	bookings []string
	toasts   []ports.ToastLevel
}

func (r *recorder) PostLocation(context.Context, string, geo.Sample) error {
	r.posts.Add(1)
	return nil
}

func (r *recorder) Snapshot(context.Context, string, geo.Sample) error {
	r.snapshots.Add(1)
	return nil
}

func (r *recorder) PublishLocation(_ context.Context, bookingID string, _ geo.Sample) error {
	r.published.Add(1)
	r.mu.Lock()
	r.bookings = append(r.bookings, bookingID)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Toast(_ context.Context, level ports.ToastLevel, _ string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, level)
	r.mu.Unlock()
}

// countingGeo tracks how many samples overlap.
type countingGeo struct {
	*Static
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (g *countingGeo) CurrentPosition(ctx context.Context) (geo.Sample, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return geo.Sample{}, ctx.Err()
		}
	}
	return g.Static.CurrentPosition(ctx)
}

type targetBox struct {
	mu sync.Mutex
	t  Target
}

func (b *targetBox) get() Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.t
}

func (b *targetBox) set(t Target) {
	b.mu.Lock()
	b.t = t
	b.mu.Unlock()
}

func newController(g ports.Geolocator, r *recorder, box *targetBox, iv Intervals) *Controller {
	return NewController(g, r, r, r, logger.Nop(), iv, box.get)
}

func TestCadenceFollowsBookingState(t *testing.T) {
	r := &recorder{}
	box := &targetBox{t: Target{DriverID: "d1", Online: true}}
	c := newController(NewStatic(41.3, 69.2), r, box, Intervals{Active: 8 * time.Second, Idle: 30 * time.Second, SampleTimeout: time.Second})
	defer c.Close()
	ctx := context.Background()

	c.Sync(ctx)
	assert.Equal(t, ModeIdle, c.Mode())
	assert.Equal(t, 30*time.Second, c.Interval())
	require.Eventually(t, func() bool { return r.snapshots.Load() == 1 }, time.Second, 5*time.Millisecond)

	box.set(Target{DriverID: "d1", Online: true, BookingID: "b1"})
	c.Sync(ctx)
	assert.Equal(t, ModeActive, c.Mode())
	assert.Equal(t, 8*time.Second, c.Interval())
	require.Eventually(t, func() bool { return r.published.Load() == 1 }, time.Second, 5*time.Millisecond)

	box.set(Target{DriverID: "d1", Online: true})
	c.Sync(ctx)
	assert.Equal(t, 30*time.Second, c.Interval())

	box.set(Target{DriverID: "d1"})
	c.Sync(ctx)
	assert.Equal(t, ModeOff, c.Mode())
	assert.Zero(t, c.Interval())

	r.mu.Lock()
	assert.Equal(t, []string{"b1"}, r.bookings)
	r.mu.Unlock()
}

func TestSyncIsIdempotent(t *testing.T) {
	r := &recorder{}
	box := &targetBox{t: Target{DriverID: "d1", Online: true}}
	c := newController(NewStatic(1, 2), r, box, Intervals{Active: time.Hour, Idle: time.Hour, SampleTimeout: time.Second})
	defer c.Close()

	c.Sync(context.Background())
	c.Sync(context.Background())
	c.Sync(context.Background())

	require.Eventually(t, func() bool { return r.snapshots.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), r.snapshots.Load())
}

func TestSwitchingNeverOverlapsLoops(t *testing.T) {
	r := &recorder{}
	g := &countingGeo{Static: NewStatic(1, 2), delay: 2 * time.Millisecond}
	box := &targetBox{t: Target{DriverID: "d1", Online: true}}
	c := newController(g, r, box, Intervals{Active: time.Millisecond, Idle: 2 * time.Millisecond, SampleTimeout: time.Second})
	defer c.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if (i+w)%2 == 0 {
					box.set(Target{DriverID: "d1", Online: true, BookingID: "b1"})
				} else {
					box.set(Target{DriverID: "d1", Online: true})
				}
				c.Sync(context.Background())
			}
		}(w)
	}
	wg.Wait()

	c.Stop()
	assert.Equal(t, int32(1), g.maxSeen.Load())
	assert.Equal(t, ModeOff, c.Mode())

	before := r.snapshots.Load() + r.published.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, r.snapshots.Load()+r.published.Load())
}

func TestPermissionDeniedStopsUntilRetry(t *testing.T) {
	r := &recorder{}
	g := NewStatic(1, 2)
	g.Fail(ErrPermissionDenied)
	box := &targetBox{t: Target{DriverID: "d1", Online: true}}
	c := newController(g, r, box, Intervals{Active: 5 * time.Millisecond, Idle: 5 * time.Millisecond, SampleTimeout: time.Second})
	defer c.Close()
	ctx := context.Background()

	c.Sync(ctx)
	require.Eventually(t, func() bool { return c.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Err(), ErrPermissionDenied)
	require.Eventually(t, func() bool { return c.Mode() == ModeOff }, time.Second, 5*time.Millisecond)

	c.Sync(ctx)
	assert.Equal(t, ModeOff, c.Mode())
	assert.Zero(t, r.snapshots.Load())

	r.mu.Lock()
	assert.Equal(t, []ports.ToastLevel{ports.ToastError}, r.toasts)
	r.mu.Unlock()

	g.Fail(nil)
	c.Retry(ctx)
	assert.NoError(t, c.Err())
	require.Eventually(t, func() bool { return r.snapshots.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestSampleTimeoutIsTransient(t *testing.T) {
	r := &recorder{}
	g := &countingGeo{Static: NewStatic(1, 2), delay: time.Hour}
	box := &targetBox{t: Target{DriverID: "d1", Online: true}}
	c := newController(g, r, box, Intervals{Active: 10 * time.Millisecond, Idle: 10 * time.Millisecond, SampleTimeout: 5 * time.Millisecond})
	defer c.Close()

	c.Sync(context.Background())
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, ModeIdle, c.Mode())
	assert.NoError(t, c.Err())
	assert.Zero(t, r.snapshots.Load())
}

func TestPostCurrent(t *testing.T) {
	r := &recorder{}
	c := newController(Unavailable{}, r, &targetBox{}, Intervals{})
	defer c.Close()

	err := c.PostCurrent(context.Background(), "d1")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, c.Err(), ErrUnsupported)

	c2 := newController(NewStatic(1, 2), r, &targetBox{}, Intervals{})
	defer c2.Close()
	require.NoError(t, c2.PostCurrent(context.Background(), "d1"))
	assert.Equal(t, int32(1), r.posts.Load())
}
