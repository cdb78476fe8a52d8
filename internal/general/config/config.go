package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type SessionCacheKind string

const (
	SessionCacheFile  SessionCacheKind = "file"
	SessionCacheRedis SessionCacheKind = "redis"
	SessionCacheNone  SessionCacheKind = "none"
)

type Config struct {
	Agent struct {
		Port     int
		DriverID string // optional hint; the validated session is authoritative
	}
	Backends struct {
		AuthURL     string
		BookingURL  string
		LocationURL string
		DriverURL   string
		RealtimeURL string
		AuthToken   string
		HTTPTimeout time.Duration
	}
	Realtime struct {
		HandshakeTimeout time.Duration
		ReconnectBase    time.Duration
		ReconnectMax     time.Duration
	}
	Location struct {
		ActiveInterval  time.Duration
		IdleInterval    time.Duration
		PositionTimeout time.Duration
		FixedLatitude   float64
		FixedLongitude  float64
		HasFixed        bool
	}
	Booking struct {
		ConfirmDelay time.Duration
	}
	SessionCache struct {
		Kind SessionCacheKind
		Path string
		TTL  time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Database struct {
		URL string // empty disables the booking journal
	}
	RabbitMQ struct {
		URL string // empty disables status publishing
	}
	JWT struct {
		SecretKey string
	}

	problems []string
}

// Load reads .env (searching upward) and the process environment, applies
// defaults and validates.
func Load() (*Config, error) {
	LoadDotEnvUp(6)
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary key lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := envReader{lookup: lookup}
	var cfg Config

	cfg.Agent.Port = r.int("DRIVER_AGENT_PORT")
	cfg.Agent.DriverID = r.str("DRIVER_ID")

	cfg.Backends.AuthURL = r.str("AUTH_BACKEND_URL")
	cfg.Backends.BookingURL = r.str("BOOKING_BACKEND_URL")
	cfg.Backends.LocationURL = r.str("LOCATION_BACKEND_URL")
	cfg.Backends.DriverURL = r.str("DRIVER_BACKEND_URL")
	cfg.Backends.RealtimeURL = r.str("REALTIME_URL")
	cfg.Backends.AuthToken = r.str("AUTH_TOKEN")
	cfg.Backends.HTTPTimeout = r.duration("HTTP_TIMEOUT")

	cfg.Realtime.HandshakeTimeout = r.duration("REALTIME_HANDSHAKE_TIMEOUT")
	cfg.Realtime.ReconnectBase = r.duration("RECONNECT_BASE")
	cfg.Realtime.ReconnectMax = r.duration("RECONNECT_MAX")

	cfg.Location.ActiveInterval = r.duration("ACTIVE_POLL_INTERVAL")
	cfg.Location.IdleInterval = r.duration("IDLE_POLL_INTERVAL")
	cfg.Location.PositionTimeout = r.duration("POSITION_TIMEOUT")
	lat, okLat := r.float("FIXED_LATITUDE")
	lng, okLng := r.float("FIXED_LONGITUDE")
	cfg.Location.FixedLatitude, cfg.Location.FixedLongitude = lat, lng
	cfg.Location.HasFixed = okLat && okLng

	cfg.Booking.ConfirmDelay = r.duration("CONFIRM_DELAY")

	cfg.SessionCache.Kind = SessionCacheKind(strings.ToLower(r.str("SESSION_CACHE")))
	cfg.SessionCache.Path = r.str("SESSION_CACHE_PATH")
	cfg.SessionCache.TTL = r.duration("SESSION_CACHE_TTL")

	cfg.Redis.Addr = r.str("REDIS_ADDR")
	cfg.Redis.Password = r.str("REDIS_PASSWORD")
	cfg.Redis.DB = r.int("REDIS_DB")

	cfg.Database.URL = r.str("DATABASE_URL")
	cfg.RabbitMQ.URL = r.str("RABBITMQ_URL")
	cfg.JWT.SecretKey = r.str("JWT_SECRET")

	cfg.problems = r.problems

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets safe defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Agent.Port == 0 {
		cfg.Agent.Port = 3010
	}

	if cfg.Backends.HTTPTimeout == 0 {
		cfg.Backends.HTTPTimeout = 10 * time.Second
	}

	if cfg.Realtime.HandshakeTimeout == 0 {
		cfg.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Realtime.ReconnectBase == 0 {
		cfg.Realtime.ReconnectBase = 5 * time.Second
	}
	if cfg.Realtime.ReconnectMax == 0 {
		cfg.Realtime.ReconnectMax = 60 * time.Second
	}

	if cfg.Location.ActiveInterval == 0 {
		cfg.Location.ActiveInterval = 8 * time.Second
	}
	if cfg.Location.IdleInterval == 0 {
		cfg.Location.IdleInterval = 30 * time.Second
	}
	if cfg.Location.PositionTimeout == 0 {
		cfg.Location.PositionTimeout = 15 * time.Second
	}

	if cfg.Booking.ConfirmDelay == 0 {
		cfg.Booking.ConfirmDelay = 2 * time.Second
	}

	if cfg.SessionCache.Kind == "" {
		cfg.SessionCache.Kind = SessionCacheFile
	}
	if cfg.SessionCache.Path == "" {
		cfg.SessionCache.Path = ".driver-session.json"
	}
	if cfg.SessionCache.TTL == 0 {
		cfg.SessionCache.TTL = 24 * time.Hour
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	problems := append([]string(nil), c.problems...)

	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		problems = append(problems, "DRIVER_AGENT_PORT must be in 1..65535")
	}

	for key, v := range map[string]string{
		"AUTH_BACKEND_URL":     c.Backends.AuthURL,
		"BOOKING_BACKEND_URL":  c.Backends.BookingURL,
		"LOCATION_BACKEND_URL": c.Backends.LocationURL,
		"DRIVER_BACKEND_URL":   c.Backends.DriverURL,
	} {
		if p := checkURL(key, v, "http", "https"); p != "" {
			problems = append(problems, p)
		}
	}
	if p := checkURL("REALTIME_URL", c.Backends.RealtimeURL, "ws", "wss"); p != "" {
		problems = append(problems, p)
	}

	if c.Realtime.ReconnectMax < c.Realtime.ReconnectBase {
		problems = append(problems, "RECONNECT_MAX must be >= RECONNECT_BASE")
	}
	if c.Location.ActiveInterval <= 0 || c.Location.IdleInterval <= 0 {
		problems = append(problems, "poll intervals must be positive")
	}

	switch c.SessionCache.Kind {
	case SessionCacheFile, SessionCacheRedis, SessionCacheNone:
	default:
		problems = append(problems, fmt.Sprintf("SESSION_CACHE %q must be one of file|redis|none", c.SessionCache.Kind))
	}

	if c.Location.HasFixed {
		if c.Location.FixedLatitude < -90 || c.Location.FixedLatitude > 90 {
			problems = append(problems, "FIXED_LATITUDE must be in -90..90")
		}
		if c.Location.FixedLongitude < -180 || c.Location.FixedLongitude > 180 {
			problems = append(problems, "FIXED_LONGITUDE must be in -180..180")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func checkURL(key, v string, schemes ...string) string {
	if v == "" {
		return key + " is required"
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return key + " must be an absolute URL"
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return ""
		}
	}
	return fmt.Sprintf("%s scheme must be one of %s", key, strings.Join(schemes, "|"))
}
