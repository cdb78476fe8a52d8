// Package notify holds what the driver is shown: toasts and pending ride
// prompts awaiting accept/decline.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

const (
	DefaultPromptTTL = 30 * time.Second
	DefaultHistory   = 50
)

type Toast struct {
	ID      string           `json:"id"`
	Level   ports.ToastLevel `json:"level"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// Prompt is an incoming ride request waiting for the driver's decision.
type Prompt struct {
	BookingID  string         `json:"booking_id"`
	Passenger  ride.Passenger `json:"passenger"`
	Pickup     ride.Place     `json:"pickup"`
	Drop       ride.Place     `json:"drop"`
	Fare       float64        `json:"fare"`
	ReceivedAt time.Time      `json:"received_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

type pending struct {
	prompt Prompt
	timer  *time.Timer
}

type Presenter struct {
	log       *logger.Logger
	promptTTL time.Duration
	history   int

	wg sync.WaitGroup

	mu      sync.Mutex
	toasts  []Toast
	prompts map[string]*pending
	closed  bool
}

func NewPresenter(log *logger.Logger, promptTTL time.Duration, history int) *Presenter {
	if log == nil {
		log = logger.Nop()
	}
	if promptTTL <= 0 {
		promptTTL = DefaultPromptTTL
	}
	if history <= 0 {
		history = DefaultHistory
	}
	return &Presenter{
		log:       log,
		promptTTL: promptTTL,
		history:   history,
		prompts:   make(map[string]*pending),
	}
}

var _ ports.Notifier = (*Presenter)(nil)

// Toast records and logs a transient message.
func (p *Presenter) Toast(ctx context.Context, level ports.ToastLevel, msg string) {
	t := Toast{ID: uuid.NewString(), Level: level, Message: msg, At: time.Now().UTC()}

	p.mu.Lock()
	p.toasts = append(p.toasts, t)
	if over := len(p.toasts) - p.history; over > 0 {
		p.toasts = append([]Toast(nil), p.toasts[over:]...)
	}
	p.mu.Unlock()

	details := map[string]any{"level": level, "toast_id": t.ID}
	if level == ports.ToastError || level == ports.ToastWarn {
		p.log.Warn(ctx, "toast", msg, details)
		return
	}
	p.log.Info(ctx, "toast", msg, details)
}

// Recent returns toasts oldest first.
func (p *Presenter) Recent() []Toast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Toast(nil), p.toasts...)
}

// Prompt shows a ride request. It expires after the prompt TTL without any
// response being sent. A repeated request for the same booking restarts the
// countdown.
func (p *Presenter) Prompt(ctx context.Context, ev ride.Event) Prompt {
	now := time.Now().UTC()
	pr := Prompt{
		BookingID:  ev.BookingID,
		Passenger:  ev.Passenger,
		Pickup:     ev.Pickup,
		Drop:       ev.Drop,
		Fare:       ev.Fare,
		ReceivedAt: now,
		ExpiresAt:  now.Add(p.promptTTL),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return pr
	}
	p.removeLocked(ev.BookingID)
	entry := &pending{prompt: pr}
	p.wg.Add(1)
	entry.timer = time.AfterFunc(p.promptTTL, func() {
		defer p.wg.Done()
		p.expire(ctx, ev.BookingID, entry)
	})
	p.prompts[ev.BookingID] = entry
	p.mu.Unlock()

	p.log.Info(logger.WithBookingID(ctx, ev.BookingID), "ride_prompt_shown", "new ride request", map[string]any{
		"passenger": ev.Passenger.Name,
		"pickup":    ev.Pickup.Address,
		"drop":      ev.Drop.Address,
		"fare":      ev.Fare,
	})
	return pr
}

// Pending returns the prompt for bookingID, if still shown.
func (p *Presenter) Pending(bookingID string) (Prompt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.prompts[bookingID]
	if !ok {
		return Prompt{}, false
	}
	return e.prompt, true
}

// Prompts returns every pending prompt, oldest first.
func (p *Presenter) Prompts() []Prompt {
	p.mu.Lock()
	out := make([]Prompt, 0, len(p.prompts))
	for _, e := range p.prompts {
		out = append(out, e.prompt)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

// Resolve removes the prompt once the driver answered it or the ride was
// cancelled. It reports whether a prompt was pending.
func (p *Presenter) Resolve(bookingID string) (Prompt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.prompts[bookingID]
	if !ok {
		return Prompt{}, false
	}
	p.removeLocked(bookingID)
	return e.prompt, true
}

// Close drops all prompts and waits for running expiry callbacks.
func (p *Presenter) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for id := range p.prompts {
		p.removeLocked(id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Presenter) removeLocked(bookingID string) {
	e, ok := p.prompts[bookingID]
	if !ok {
		return
	}
	if e.timer.Stop() {
		p.wg.Done()
	}
	delete(p.prompts, bookingID)
}

func (p *Presenter) expire(ctx context.Context, bookingID string, entry *pending) {
	p.mu.Lock()
	cur, ok := p.prompts[bookingID]
	if !ok || cur != entry {
		p.mu.Unlock()
		return
	}
	delete(p.prompts, bookingID)
	p.mu.Unlock()

	p.log.Info(logger.WithBookingID(ctx, bookingID), "ride_prompt_expired", "ride request expired without a response", nil)
}
