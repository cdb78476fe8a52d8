// Package websocket owns the driver's realtime channel to the dispatch
// backend: connect gating, inbound ride frames, outbound sends and
// reconnection with backoff.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ride-driver/internal/domain/geo"
	"ride-driver/internal/general/contracts"
	"ride-driver/internal/general/eventbus"
	"ride-driver/internal/general/jwt"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingPeriod       = 30 * time.Second
	defaultPongWait         = 60 * time.Second
	defaultWriteWait        = 5 * time.Second
)

const (
	toastOnline       = "You are online and ready for rides."
	toastOffline      = "You are offline."
	toastReconnecting = "Disconnected, reconnecting…"
)

var ErrNotConnected = errors.New("realtime channel not connected")

// Inputs are the facts the manager gates on. They are read fresh on every
// reconcile, never cached.
type Inputs struct {
	DriverID   string
	SessionOK  bool
	Online     bool
	RideActive bool
}

func (in Inputs) allowed() bool {
	return in.SessionOK && in.Online && strings.TrimSpace(in.DriverID) != ""
}

type Options struct {
	URL              string
	Token            string // optional bearer; sent as header and auth frame
	Jar              http.CookieJar
	HandshakeTimeout time.Duration
	Backoff          Backoff
	PingPeriod       time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
}

func (o *Options) applyDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
}

// session is one live socket plus the channel its reader closes on exit.
type session struct {
	conn     *websocket.Conn
	driverID string
	done     chan struct{}
}

// Manager owns the realtime socket. All connect and disconnect decisions are
// made by one loop goroutine; Reconcile only nudges it.
type Manager struct {
	opts     Options
	dialer   *websocket.Dialer
	inputs   func() Inputs
	bus      *eventbus.Bus
	notifier ports.Notifier
	log      *logger.Logger

	mu        sync.Mutex
	state     State
	sess      *session
	announced bool
	listeners []func(State)

	writeMu sync.Mutex

	kick      chan struct{}
	dropped   chan *session
	closed    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewManager(opts Options, inputs func() Inputs, bus *eventbus.Bus, notifier ports.Notifier, log *logger.Logger) *Manager {
	opts.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Jar:              opts.Jar,
		},
		inputs:   inputs,
		bus:      bus,
		notifier: notifier,
		log:      log,
		state:    StateDisconnected,
		kick:     make(chan struct{}, 1),
		dropped:  make(chan *session),
		closed:   make(chan struct{}),
	}
}

// Start launches the reconcile loop and evaluates the inputs once.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.loop(ctx)
	})
	m.Reconcile()
}

// Reconcile asks the loop to re-read the inputs. Never blocks.
func (m *Manager) Reconcile() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Close disconnects without a toast and joins every goroutine. Idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
	m.wg.Wait()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers fn; it runs on the loop goroutine.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Send writes {"type":"send","destination":…,"data":payload}.
func (m *Manager) Send(ctx context.Context, destination string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	s, st := m.sess, m.state
	m.mu.Unlock()
	if s == nil || st != StateConnected {
		return ErrNotConnected
	}

	frame := contracts.Frame{Type: contracts.FrameSend, Destination: destination, Data: data}
	if err := m.writeJSON(ctx, s.conn, frame); err != nil {
		return errors.Join(ErrNotConnected, err)
	}
	return nil
}

// PublishLocation sends an in-ride sample to the booking's location topic.
func (m *Manager) PublishLocation(ctx context.Context, bookingID string, s geo.Sample) error {
	m.mu.Lock()
	var driverID string
	if m.sess != nil {
		driverID = m.sess.driverID
	}
	m.mu.Unlock()
	if driverID == "" {
		return ErrNotConnected
	}

	msg := contracts.RideLocation{
		BookingID:   bookingID,
		DriverID:    driverID,
		Coordinates: contracts.Coordinates{Latitude: s.Latitude, Longitude: s.Longitude},
		Timestamp:   s.CapturedAt.UTC().Format(time.RFC3339),
	}
	return m.Send(ctx, contracts.RideLocationDestination(driverID, bookingID), msg)
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	var (
		retry   *time.Timer
		retryC  <-chan time.Time
		attempt int
	)
	cancelRetry := func() {
		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}
	}
	schedule := func() {
		cancelRetry()
		d := m.opts.Backoff.Delay(attempt)
		attempt++
		retry = time.NewTimer(d)
		retryC = retry.C
		m.log.Info(ctx, "realtime_retry_scheduled", "reconnect scheduled",
			map[string]any{"attempt": attempt, "delay_ms": d.Milliseconds()})
	}
	attemptConnect := func(in Inputs) {
		if err := m.connect(ctx, in); err != nil {
			schedule()
			return
		}
		attempt = 0
	}

	for {
		select {
		case <-m.closed:
			cancelRetry()
			m.disconnect(ctx, false)
			return

		case <-ctx.Done():
			m.closeOnce.Do(func() { close(m.closed) })
			cancelRetry()
			m.disconnect(ctx, false)
			return

		case <-m.kick:
			in := m.inputs()
			m.mu.Lock()
			s := m.sess
			m.mu.Unlock()

			if !in.allowed() || (s != nil && s.driverID != in.DriverID) {
				cancelRetry()
				attempt = 0
				m.disconnect(ctx, true)
			}
			// a pending retry owns the next attempt
			if in.allowed() && retryC == nil && m.State() == StateDisconnected {
				attemptConnect(in)
			}

		case <-retryC:
			retry, retryC = nil, nil
			in := m.inputs()
			if !in.allowed() || m.State() != StateDisconnected {
				continue
			}
			m.toast(ctx, ports.ToastWarn, toastReconnecting)
			attemptConnect(in)

		case s := <-m.dropped:
			if m.drop(ctx, s) {
				schedule()
			}
		}
	}
}

func (m *Manager) connect(ctx context.Context, in Inputs) error {
	ctx = logger.WithDriverID(ctx, in.DriverID)
	m.setState(StateConnecting)

	header := http.Header{}
	if m.opts.Token != "" {
		header.Set("Authorization", "Bearer "+jwt.StripBearer(m.opts.Token))
	}

	dctx, cancel := context.WithTimeout(ctx, m.opts.HandshakeTimeout)
	conn, resp, err := m.dialer.DialContext(dctx, m.opts.URL, header)
	cancel()
	if err != nil {
		details := map[string]any{"url": m.opts.URL, "error": err.Error()}
		if resp != nil {
			details["status"] = resp.StatusCode
		}
		m.log.Warn(ctx, "realtime_connect_failed", "realtime handshake failed", details)
		m.setState(StateDisconnected)
		return err
	}

	if err := m.handshake(ctx, conn, in.DriverID); err != nil {
		m.log.Warn(ctx, "realtime_subscribe_failed", "realtime subscribe failed",
			map[string]any{"error": err.Error()})
		_ = conn.Close()
		m.setState(StateDisconnected)
		return err
	}

	// inputs may have moved while dialing
	if now := m.inputs(); !now.allowed() || now.DriverID != in.DriverID {
		m.writeClose(conn)
		_ = conn.Close()
		m.setState(StateDisconnected)
		m.Reconcile()
		return nil
	}

	_ = conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	})

	s := &session{conn: conn, driverID: in.DriverID, done: make(chan struct{})}
	m.mu.Lock()
	m.sess = s
	announce := !m.announced
	m.announced = true
	m.mu.Unlock()
	m.setState(StateConnected)

	m.wg.Add(2)
	go m.readLoop(ctx, s)
	go m.pingLoop(s)

	m.log.Info(ctx, "realtime_connected", "realtime channel connected",
		map[string]any{"topic": contracts.DriverTopic(in.DriverID)})
	if announce && !in.RideActive {
		m.toast(ctx, ports.ToastSuccess, toastOnline)
	}
	return nil
}

func (m *Manager) handshake(ctx context.Context, conn *websocket.Conn, driverID string) error {
	if m.opts.Token != "" {
		if err := m.writeJSON(ctx, conn, jwt.AuthFrame(m.opts.Token)); err != nil {
			return err
		}
	}
	sub := contracts.Frame{Type: contracts.FrameSubscribe, Destination: contracts.DriverTopic(driverID)}
	return m.writeJSON(ctx, conn, sub)
}

// disconnect closes the live socket, if any, with a normal close frame.
// The offline toast fires only when the driver had been announced online.
func (m *Manager) disconnect(ctx context.Context, toast bool) {
	m.mu.Lock()
	s := m.sess
	m.sess = nil
	wasAnnounced := m.announced
	m.announced = false
	m.mu.Unlock()

	if s != nil {
		m.writeClose(s.conn)
		_ = s.conn.Close()
		m.log.Info(logger.WithDriverID(ctx, s.driverID), "realtime_disconnected",
			"realtime channel closed", nil)
	}
	m.setState(StateDisconnected)

	if toast && (s != nil || wasAnnounced) {
		m.toast(ctx, ports.ToastInfo, toastOffline)
	}
}

// drop handles a socket that ended without the manager asking. It reports
// whether a retry should be scheduled.
func (m *Manager) drop(ctx context.Context, s *session) bool {
	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return false
	}
	m.sess = nil
	m.mu.Unlock()

	_ = s.conn.Close()
	m.setState(StateDisconnected)
	m.log.Warn(logger.WithDriverID(ctx, s.driverID), "realtime_dropped",
		"realtime channel closed unexpectedly", nil)
	return true
}

func (m *Manager) readLoop(ctx context.Context, s *session) {
	defer m.wg.Done()
	defer close(s.done)

	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case m.dropped <- s:
			case <-m.closed:
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		m.dispatch(ctx, data)
	}
}

func (m *Manager) dispatch(ctx context.Context, raw []byte) {
	ev, err := ParseRideFrame(raw)
	if err != nil {
		m.log.Warn(ctx, "realtime_frame_dropped", "dropping inbound frame",
			map[string]any{"error": err.Error(), "bytes": len(raw)})
		return
	}
	ctx = logger.WithBookingID(ctx, ev.BookingID)
	n := m.bus.Emit(ctx, ev)
	m.log.Debug(ctx, "realtime_event", "ride event received",
		map[string]any{"event_type": ev.Type, "subscribers": n})
}

func (m *Manager) pingLoop(s *session) {
	defer m.wg.Done()
	t := time.NewTicker(m.opts.PingPeriod)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			m.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.WriteWait))
			m.writeMu.Unlock()
			if err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (m *Manager) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	deadline := time.Now().Add(m.opts.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(v)
}

func (m *Manager) writeClose(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "driver offline")
	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.opts.WriteWait))
	m.writeMu.Unlock()
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	fns := append([]func(State){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func (m *Manager) toast(ctx context.Context, level ports.ToastLevel, msg string) {
	if m.notifier != nil {
		m.notifier.Toast(ctx, level, msg)
	}
}
