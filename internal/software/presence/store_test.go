package presence

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoOfflineLockedDuringRide(t *testing.T) {
	var onRide atomic.Bool
	s := NewStore(onRide.Load)

	var changes []bool
	s.OnChange(func(v bool) { changes = append(changes, v) })

	s.GoOnline()
	s.GoOnline()
	require.True(t, s.Online())

	onRide.Store(true)
	assert.ErrorIs(t, s.GoOffline(), ErrRideInProgress)
	assert.True(t, s.Online())

	onRide.Store(false)
	require.NoError(t, s.GoOffline())
	assert.False(t, s.Online())

	assert.Equal(t, []bool{true, false}, changes)
}

func TestForceOfflineIgnoresRide(t *testing.T) {
	s := NewStore(func() bool { return true })
	s.GoOnline()
	s.ForceOffline()
	assert.False(t, s.Online())
}

func TestListenerMayRegisterDuringNotify(t *testing.T) {
	s := NewStore(nil)

	var late []bool
	s.OnChange(func(v bool) {
		assert.Equal(t, v, s.Online())
		if v {
			s.OnChange(func(v bool) { late = append(late, v) })
		}
	})

	s.GoOnline()
	assert.Empty(t, late)

	s.ForceOffline()
	assert.Equal(t, []bool{false}, late)
}
