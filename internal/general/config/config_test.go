package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func minimalEnv() map[string]string {
	return map[string]string{
		"AUTH_BACKEND_URL":     "http://auth.local",
		"BOOKING_BACKEND_URL":  "http://booking.local",
		"LOCATION_BACKEND_URL": "http://location.local",
		"DRIVER_BACKEND_URL":   "http://driver.local",
		"REALTIME_URL":         "ws://realtime.local/ws",
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(minimalEnv()))
	require.NoError(t, err)

	assert.Equal(t, 3010, cfg.Agent.Port)
	assert.Equal(t, 8*time.Second, cfg.Location.ActiveInterval)
	assert.Equal(t, 30*time.Second, cfg.Location.IdleInterval)
	assert.Equal(t, 15*time.Second, cfg.Location.PositionTimeout)
	assert.Equal(t, 5*time.Second, cfg.Realtime.ReconnectBase)
	assert.Equal(t, 60*time.Second, cfg.Realtime.ReconnectMax)
	assert.Equal(t, 2*time.Second, cfg.Booking.ConfirmDelay)
	assert.Equal(t, SessionCacheFile, cfg.SessionCache.Kind)
	assert.False(t, cfg.Location.HasFixed)
}

func TestFromLookupOverrides(t *testing.T) {
	env := minimalEnv()
	env["ACTIVE_POLL_INTERVAL"] = "4"
	env["IDLE_POLL_INTERVAL"] = "1m"
	env["SESSION_CACHE"] = "REDIS"
	env["FIXED_LATITUDE"] = "41.31"
	env["FIXED_LONGITUDE"] = "69.24"

	cfg, err := FromLookup(lookupFrom(env))
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Location.ActiveInterval)
	assert.Equal(t, time.Minute, cfg.Location.IdleInterval)
	assert.Equal(t, SessionCacheRedis, cfg.SessionCache.Kind)
	assert.True(t, cfg.Location.HasFixed)
	assert.InDelta(t, 41.31, cfg.Location.FixedLatitude, 1e-9)
}

func TestFromLookupCollectsAllProblems(t *testing.T) {
	env := map[string]string{
		"REALTIME_URL":      "http://wrong-scheme",
		"DRIVER_AGENT_PORT": "abc",
		"SESSION_CACHE":     "memcached",
		"RECONNECT_BASE":    "90s",
	}

	_, err := FromLookup(lookupFrom(env))
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"AUTH_BACKEND_URL is required",
		"REALTIME_URL scheme must be one of ws|wss",
		"DRIVER_AGENT_PORT: invalid integer",
		"SESSION_CACHE",
		"RECONNECT_MAX must be >= RECONNECT_BASE",
	} {
		assert.Contains(t, msg, want)
	}
}
