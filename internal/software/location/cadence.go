package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-driver/internal/domain/geo"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

type Mode string

const (
	ModeOff    Mode = "off"
	ModeIdle   Mode = "idle"   // online, no booking: REST snapshot
	ModeActive Mode = "active" // booking active: realtime publish
)

// Target is what the cadence should follow right now.
type Target struct {
	DriverID  string
	Online    bool
	BookingID string
}

type Intervals struct {
	Active        time.Duration
	Idle          time.Duration
	SampleTimeout time.Duration
}

type plan struct {
	mode      Mode
	driverID  string
	bookingID string
}

func (i Intervals) of(m Mode) time.Duration {
	if m == ModeActive {
		return i.Active
	}
	return i.Idle
}

// Controller runs at most one polling loop. Every change of plan fully stops
// the previous loop (ticker stopped, in-flight sample cancelled, goroutine
// joined) before the next one starts.
type Controller struct {
	geo       ports.Geolocator
	rest      ports.LocationBackend
	realtime  ports.RideLocationSender
	notifier  ports.Notifier
	log       *logger.Logger
	intervals Intervals
	target    func() Target

	syncMu sync.Mutex // serializes Sync/Stop/Close

	mu      sync.Mutex
	plan    plan
	cancel  context.CancelFunc
	done    chan struct{}
	hardErr error
	last    geo.Sample
	closed  bool
}

func NewController(
	g ports.Geolocator,
	rest ports.LocationBackend,
	realtime ports.RideLocationSender,
	notifier ports.Notifier,
	log *logger.Logger,
	intervals Intervals,
	target func() Target,
) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if intervals.SampleTimeout <= 0 {
		intervals.SampleTimeout = 15 * time.Second
	}
	return &Controller{
		geo:       g,
		rest:      rest,
		realtime:  realtime,
		notifier:  notifier,
		log:       log,
		intervals: intervals,
		target:    target,
		plan:      plan{mode: ModeOff},
	}
}

func desired(t Target) plan {
	switch {
	case !t.Online || t.DriverID == "":
		return plan{mode: ModeOff}
	case t.BookingID != "":
		return plan{mode: ModeActive, driverID: t.DriverID, bookingID: t.BookingID}
	default:
		return plan{mode: ModeIdle, driverID: t.DriverID}
	}
}

// Sync brings the loop in line with the current target. Calling it again
// with an unchanged target is a no-op.
func (c *Controller) Sync(ctx context.Context) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	want := desired(c.target())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if want.mode == ModeOff {
		c.hardErr = nil
	} else if c.hardErr != nil {
		want = plan{mode: ModeOff}
	}
	same := c.plan == want && (want.mode == ModeOff || c.runningLocked())
	c.mu.Unlock()
	if same {
		return
	}

	c.stopLoop()
	if want.mode == ModeOff {
		return
	}
	c.startLoop(ctx, want)
}

// Stop halts polling. Idempotent.
func (c *Controller) Stop() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	c.stopLoop()
}

// Retry clears a permission/unsupported failure and resumes polling.
func (c *Controller) Retry(ctx context.Context) {
	c.mu.Lock()
	c.hardErr = nil
	c.mu.Unlock()
	c.Sync(ctx)
}

// Close stops polling for good.
func (c *Controller) Close() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	c.stopLoop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan.mode != ModeOff && !c.runningLocked() {
		return ModeOff
	}
	return c.plan.mode
}

// Interval is the polling period of the running loop, 0 when stopped.
func (c *Controller) Interval() time.Duration {
	m := c.Mode()
	if m == ModeOff {
		return 0
	}
	return c.intervals.of(m)
}

// Err is the failure that stopped polling, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hardErr
}

func (c *Controller) LastSample() (geo.Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, !c.last.CapturedAt.IsZero()
}

// PostCurrent samples once and reports it to the location backend. It is
// used for the initial position when the driver goes online.
func (c *Controller) PostCurrent(ctx context.Context, driverID string) error {
	s, err := c.sample(ctx)
	if err != nil {
		if IsHard(err) {
			c.fail(ctx, err)
		}
		return err
	}
	if err := c.rest.PostLocation(ctx, driverID, s); err != nil {
		return fmt.Errorf("post initial location: %w", err)
	}
	return nil
}

func (c *Controller) runningLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Controller) stopLoop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.plan = plan{mode: ModeOff}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Controller) startLoop(ctx context.Context, p plan) {
	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lctx = logger.WithDriverID(lctx, p.driverID)
	done := make(chan struct{})

	c.mu.Lock()
	c.plan, c.cancel, c.done = p, cancel, done
	c.mu.Unlock()

	interval := c.intervals.of(p.mode)
	c.log.Info(lctx, "location_cadence_started", "location polling started",
		map[string]any{"mode": p.mode, "interval": interval.String(), "booking_id": p.bookingID})

	go c.run(lctx, p, interval, done)
}

func (c *Controller) run(ctx context.Context, p plan, interval time.Duration, done chan struct{}) {
	defer close(done)

	if !c.tick(ctx, p) {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.tick(ctx, p) {
				return
			}
		}
	}
}

// tick takes one sample and reports it. It returns false when the loop must end.
func (c *Controller) tick(ctx context.Context, p plan) bool {
	s, err := c.sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if IsHard(err) {
			c.fail(ctx, err)
			return false
		}
		c.log.Warn(ctx, "location_sample_failed", "could not get position; will retry next tick", map[string]any{"error": err.Error()})
		return true
	}

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()

	switch p.mode {
	case ModeActive:
		err = c.realtime.PublishLocation(ctx, p.bookingID, s)
	case ModeIdle:
		err = c.rest.Snapshot(ctx, p.driverID, s)
	}
	if err != nil && ctx.Err() == nil {
		c.log.Warn(ctx, "location_report_failed", "failed to report position",
			map[string]any{"mode": p.mode, "error": err.Error()})
	}
	return true
}

func (c *Controller) sample(ctx context.Context) (geo.Sample, error) {
	sctx, cancel := context.WithTimeout(ctx, c.intervals.SampleTimeout)
	defer cancel()

	s, err := c.geo.CurrentPosition(sctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return geo.Sample{}, fmt.Errorf("%w: timed out after %s", ErrPositionUnavailable, c.intervals.SampleTimeout)
	}
	return s, err
}

func (c *Controller) fail(ctx context.Context, err error) {
	c.mu.Lock()
	c.hardErr = err
	c.mu.Unlock()

	c.log.Error(ctx, "location_polling_stopped", "location polling stopped until retried", err, nil)
	if c.notifier != nil {
		c.notifier.Toast(ctx, ports.ToastError, "Location unavailable: "+err.Error())
	}
}
