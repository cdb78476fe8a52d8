package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written by the agent.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`            // ISO 8601
	Level     string       `json:"level"`                // DEBUG | INFO | WARN | ERROR
	Service   string       `json:"service"`              // e.g. driver-agent
	Action    string       `json:"action"`               // event name, e.g. realtime_connected
	Message   string       `json:"message"`              // human-readable description
	Hostname  string       `json:"hostname"`             // agent hostname
	RequestID string       `json:"request_id,omitempty"` // control API correlation id
	DriverID  string       `json:"driver_id,omitempty"`  // signed-in driver (when known)
	BookingID string       `json:"booking_id,omitempty"` // booking identifier (when applicable)
	Details   any          `json:"details,omitempty"`    // optional: extra fields (map or struct)
	Error     *ErrorObject `json:"error,omitempty"`      // optional: error details
}

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	out      io.Writer
	mu       sync.Mutex
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter is New with an explicit sink. Tests pass io.Discard or a buffer.
func NewWithWriter(service string, out io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	if out == nil {
		out = os.Stdout
	}
	return &Logger{service: service, hostname: hn, out: out}
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return NewWithWriter("nop", io.Discard)
}

// emit marshals and writes a single JSON line to the sink.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Fprintln(l.out, string(b))
		return
	}

	// retry once without Details (common source of marshal errors)
	e.Details = nil
	if b, err := json.Marshal(e); err == nil {
		fmt.Fprintln(l.out, string(b))
		return
	}

	// final structured fallback keeps the output JSON-shaped
	fallback := map[string]any{
		"timestamp": nowISO(),
		"level":     "ERROR",
		"service":   l.service,
		"action":    "logger_marshal_failed",
		"message":   "failed to encode log entry",
		"hostname":  l.hostname,
		"error": ErrorObject{
			Msg:   strings.TrimSpace(err.Error()),
			Stack: string(debug.Stack()),
		},
	}
	if fb, err := json.Marshal(fallback); err == nil {
		fmt.Fprintln(l.out, string(fb))
	} else {
		// last resort
		fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
	}
}

// ------------ Log methods -------------

// entry fills the common fields and the ids carried by ctx.
func (l *Logger) entry(ctx context.Context, level, action, msg string, details any) LogEntry {
	return LogEntry{
		Timestamp: nowISO(),
		Level:     level,
		Service:   l.service,
		Action:    safeAction(action),
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: ctxString(ctx, ctxKeyRequestID),
		DriverID:  ctxString(ctx, ctxKeyDriverID),
		BookingID: ctxString(ctx, ctxKeyBookingID),
		Details:   details,
	}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "DEBUG", action, msg, details))
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "INFO", action, msg, details))
}

// Warn is for dropped input and recoverable conditions that need no stack.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "WARN", action, msg, details))
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	e := l.entry(ctx, "ERROR", action, msg, details)
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "driveragent_request_id"
	ctxKeyDriverID  ctxKey = "driveragent_driver_id"
	ctxKeyBookingID ctxKey = "driveragent_booking_id"
)

// WithRequestID returns a new context carrying request_id.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	return withValue(ctx, ctxKeyRequestID, reqID)
}

// WithDriverID returns a new context carrying driver_id.
func WithDriverID(ctx context.Context, driverID string) context.Context {
	return withValue(ctx, ctxKeyDriverID, driverID)
}

// WithBookingID returns a new context carrying booking_id.
func WithBookingID(ctx context.Context, bookingID string) context.Context {
	return withValue(ctx, ctxKeyBookingID, bookingID)
}

// RequestID extracts request_id from ctx (if any).
func RequestID(ctx context.Context) string {
	return ctxString(ctx, ctxKeyRequestID)
}

// withValue skips blank ids so they never shadow an outer value.
func withValue(ctx context.Context, k ctxKey, v string) context.Context {
	if strings.TrimSpace(v) == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// ctxString extracts a string value for k from ctx (if any).
func ctxString(ctx context.Context, k ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(k); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ----- Small utilities -----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
