// Package eventbus fans normalized ride events out to in-process consumers.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"ride-driver/internal/domain/ride"
	"ride-driver/internal/general/logger"
)

type Handler func(ctx context.Context, ev ride.Event)

// Subscription is the handle returned by On. Unsubscribe is idempotent.
type Subscription struct {
	bus       *Bus
	eventType ride.EventType
	id        uint64
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.Off(s)
}

// Bus delivers events synchronously in the emitter's goroutine, so one
// emitter's order is preserved for every subscriber. Order between
// subscribers of the same type is unspecified.
type Bus struct {
	log    *logger.Logger
	mu     sync.RWMutex
	nextID uint64
	subs   map[ride.EventType]map[uint64]Handler
}

func New(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		log:  log,
		subs: make(map[ride.EventType]map[uint64]Handler),
	}
}

// On registers h for events of type t.
func (b *Bus) On(t ride.EventType, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subs[t] == nil {
		b.subs[t] = make(map[uint64]Handler)
	}
	b.subs[t][b.nextID] = h
	return &Subscription{bus: b, eventType: t, id: b.nextID}
}

// Off removes the subscription. Removing twice is a no-op.
func (b *Bus) Off(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if m := b.subs[s.eventType]; m != nil {
		delete(m, s.id)
		if len(m) == 0 {
			delete(b.subs, s.eventType)
		}
	}
}

// Emit calls every handler registered for ev.Type and returns how many ran.
// A panicking handler is logged and does not stop the others.
func (b *Bus) Emit(ctx context.Context, ev ride.Event) int {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Type]))
	for _, h := range b.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(ctx, h, ev)
	}
	return len(handlers)
}

func (b *Bus) call(ctx context.Context, h Handler, ev ride.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(logger.WithBookingID(ctx, ev.BookingID), "event_handler_panic",
				"ride event handler panicked", fmt.Errorf("%v", r),
				map[string]any{"event_type": ev.Type})
		}
	}()
	h(ctx, ev)
}
