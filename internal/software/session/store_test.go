package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-driver/internal/domain/driver"
	"ride-driver/internal/general/jwt"
	"ride-driver/internal/general/logger"
)

type fakeAuth struct {
	id         driver.Identity
	err        error
	entered    chan struct{}
	block      chan struct{}
	signouts   int
	signoutErr error
}

func (f *fakeAuth) Signout(context.Context) error {
	f.signouts++
	return f.signoutErr
}

func (f *fakeAuth) Validate(ctx context.Context) (driver.Identity, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.id, f.err
}

func dana() driver.Identity {
	return driver.Identity{DriverID: "d1", DisplayName: "Dana", Role: driver.RoleDriver}
}

func TestRestoreIsNeverAuthoritative(t *testing.T) {
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, cache.Save(ctx, dana()))

	s := NewStore(&fakeAuth{err: errors.New("401")}, cache, logger.Nop())
	s.Restore(ctx)

	cur := s.Current()
	assert.Equal(t, "d1", cur.DriverID)
	assert.True(t, cur.Loading)
	assert.False(t, cur.Authenticated)
	assert.False(t, s.CanConnect())

	require.Error(t, s.Validate(ctx))
	assert.Equal(t, driver.Session{}, s.Current())

	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatePersists(t *testing.T) {
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "nested", "s.json"))
	s := NewStore(&fakeAuth{id: dana()}, cache, logger.Nop())

	var seen []driver.Session
	s.OnChange(func(v driver.Session) { seen = append(seen, v) })

	s.Restore(ctx)
	require.NoError(t, s.Validate(ctx))
	assert.True(t, s.CanConnect())
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading)
	assert.True(t, seen[1].Authenticated)

	id, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dana(), id)

	s.Logout(ctx)
	assert.False(t, s.CanConnect())
	_, ok, _ = cache.Load(ctx)
	assert.False(t, ok)
}

func TestLogoutSignsOutEvenWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "s.json"))
	auth := &fakeAuth{id: dana(), signoutErr: errors.New("503")}
	s := NewStore(auth, cache, logger.Nop())
	require.NoError(t, s.Validate(ctx))

	s.Logout(ctx)
	assert.Equal(t, 1, auth.signouts)
	assert.Equal(t, driver.Session{}, s.Current())
	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogoutDiscardsInFlightValidation(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{id: dana(), entered: make(chan struct{}), block: make(chan struct{})}
	s := NewStore(auth, NoCache{}, logger.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Validate(ctx) }()
	<-auth.entered

	s.Logout(ctx)
	close(auth.block)
	require.NoError(t, <-done)
	assert.False(t, s.Current().Authenticated)
}

func TestRestoreSkipsExpiredToken(t *testing.T) {
	ctx := context.Background()
	cache := NewFileCache(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, cache.Save(ctx, dana()))

	mgr, err := jwt.NewManager("k", time.Minute)
	require.NoError(t, err)
	tok, _, err := mgr.IssueDriverToken("d1")
	require.NoError(t, err)

	later := func() time.Time { return time.Now().Add(time.Hour) }
	s := NewStore(&fakeAuth{id: dana()}, cache, logger.Nop(), WithBearer(tok), WithClock(later))
	s.Restore(ctx)

	assert.Empty(t, s.Current().DriverID)
	assert.True(t, s.Current().Loading)
	_, ok, _ := cache.Load(ctx)
	assert.False(t, ok)
}

func TestFileCacheCorruptEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.json")
	c := NewFileCache(path)
	require.NoError(t, c.Delete(ctx))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, ok, err := c.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
