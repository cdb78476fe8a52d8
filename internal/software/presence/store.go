// Package presence owns the driver's online intent.
package presence

import (
	"errors"
	"slices"
	"sync"
)

var ErrRideInProgress = errors.New("cannot go offline while a ride is in progress")

// Store holds the online intent. The lock-online rule lives in the mutator:
// GoOffline refuses while onRide reports true.
type Store struct {
	onRide func() bool

	mu        sync.Mutex
	online    bool
	listeners []func(bool)
}

// NewStore takes the active-booking check used to enforce the lock.
func NewStore(onRide func() bool) *Store {
	if onRide == nil {
		onRide = func() bool { return false }
	}
	return &Store{onRide: onRide}
}

func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Store) OnChange(fn func(online bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) GoOnline() {
	s.set(true)
}

// GoOffline clears the intent unless a ride is active, in which case nothing
// changes and ErrRideInProgress is returned.
func (s *Store) GoOffline() error {
	if s.onRide() {
		return ErrRideInProgress
	}
	s.set(false)
	return nil
}

// ForceOffline clears the intent unconditionally. Used when the session is lost.
func (s *Store) ForceOffline() {
	s.set(false)
}

func (s *Store) set(v bool) {
	s.mu.Lock()
	if s.online == v {
		s.mu.Unlock()
		return
	}
	s.online = v
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
