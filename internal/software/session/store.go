// Package session owns the authenticated driver identity.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/general/jwt"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/ports"
)

const signoutTimeout = 5 * time.Second

type Option func(*Store)

// WithBearer lets Restore skip a cached identity whose token already expired.
func WithBearer(token string) Option {
	return func(s *Store) { s.token = token }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the only writer of driver.Session. A cached identity is loaded
// as Loading and only becomes Authenticated after the auth backend agrees.
type Store struct {
	auth  ports.AuthBackend
	cache ports.SessionCache
	log   *logger.Logger
	token string
	now   func() time.Time

	mu        sync.Mutex
	cur       driver.Session
	gen       uint64
	listeners []func(driver.Session)
}

func NewStore(auth ports.AuthBackend, cache ports.SessionCache, log *logger.Logger, opts ...Option) *Store {
	if cache == nil {
		cache = NoCache{}
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{auth: auth, cache: cache, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Current() driver.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *Store) CanConnect() bool {
	return s.Current().CanConnect()
}

func (s *Store) OnChange(fn func(driver.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Restore loads the cached identity. The result is never authenticated.
func (s *Store) Restore(ctx context.Context) {
	if s.token != "" {
		expired, err := jwt.Expired(s.token, s.now())
		if err != nil {
			s.log.Warn(ctx, "session_token_unreadable", "configured bearer token could not be parsed", map[string]any{"error": err.Error()})
		}
		if expired {
			s.log.Info(ctx, "session_cache_skipped", "bearer token expired; dropping cached identity", nil)
			s.dropCache(ctx)
			s.set(driver.Session{Loading: true})
			return
		}
	}

	id, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.log.Error(ctx, "session_cache_load_failed", "failed to load cached session", err, nil)
	}
	if !ok {
		s.set(driver.Session{Loading: true})
		return
	}

	s.log.Info(logger.WithDriverID(ctx, id.DriverID), "session_restored", "restored cached identity pending validation", nil)
	s.set(driver.Session{
		DriverID:    id.DriverID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Role:        id.Role,
		Loading:     true,
	})
}

// Validate asks the auth backend. On success the session becomes
// authenticated and is cached; on any failure it is cleared.
func (s *Store) Validate(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	id, err := s.auth.Validate(ctx)

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return nil
	}

	if err != nil {
		s.log.Info(ctx, "session_invalid", "session validation failed; clearing", map[string]any{"error": err.Error()})
		s.dropCache(ctx)
		s.set(driver.Session{})
		return fmt.Errorf("validate session: %w", err)
	}

	ctx = logger.WithDriverID(ctx, id.DriverID)
	if err := s.cache.Save(ctx, id); err != nil {
		s.log.Error(ctx, "session_cache_save_failed", "failed to persist session", err, nil)
	}
	s.log.Info(ctx, "session_validated", "driver session validated", map[string]any{"role": id.Role})
	s.set(driver.Session{
		DriverID:      id.DriverID,
		DisplayName:   id.DisplayName,
		Email:         id.Email,
		Role:          id.Role,
		Authenticated: true,
	})
	return nil
}

// Logout signs out at the auth backend, then clears the session and the
// cache. A failed signout is logged and never keeps the session. An
// in-flight Validate that finishes afterwards is discarded.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, signoutTimeout)
	err := s.auth.Signout(sctx)
	cancel()
	if err != nil {
		s.log.Warn(ctx, "session_signout_failed", "auth backend signout failed, clearing locally", map[string]any{"error": err.Error()})
	}

	s.dropCache(ctx)
	s.set(driver.Session{})
	s.log.Info(ctx, "session_logout", "driver logged out", nil)
}

func (s *Store) dropCache(ctx context.Context) {
	if err := s.cache.Delete(ctx); err != nil {
		s.log.Error(ctx, "session_cache_delete_failed", "failed to delete cached session", err, nil)
	}
}

func (s *Store) set(next driver.Session) {
	s.mu.Lock()
	if s.cur == next {
		s.mu.Unlock()
		return
	}
	s.cur = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
