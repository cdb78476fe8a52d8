package driveragent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"ride-driver/internal/general/backend"
	"ride-driver/internal/general/config"
	"ride-driver/internal/general/eventbus"
	"ride-driver/internal/general/logger"
	"ride-driver/internal/general/postgres"
	"ride-driver/internal/general/rabbitmq"
	"ride-driver/internal/general/redis"
	"ride-driver/internal/general/websocket"
	"ride-driver/internal/ports"
	"ride-driver/internal/software/booking"
	"ride-driver/internal/software/dispatch/handler"
	"ride-driver/internal/software/dispatch/service"
	"ride-driver/internal/software/location"
	"ride-driver/internal/software/notify"
	"ride-driver/internal/software/presence"
	"ride-driver/internal/software/session"
)

var _ handler.Dispatch = (*service.Service)(nil)

// Run starts the driver agent and blocks until ctx is cancelled or the
// control API fails.
func Run(ctx context.Context, maxConcurrent int) error {
	log := logger.New("driver-agent")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "config_load_failed", "failed to load configuration", err, nil)
		return err
	}

	api := backend.NewClient(backend.Endpoints{
		AuthURL:     cfg.Backends.AuthURL,
		BookingURL:  cfg.Backends.BookingURL,
		LocationURL: cfg.Backends.LocationURL,
		DriverURL:   cfg.Backends.DriverURL,
	}, cfg.Backends.HTTPTimeout, backend.WithBearer(cfg.Backends.AuthToken))

	cache, closeCache, err := sessionCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	var bookingOpts []booking.Option
	if cfg.Database.URL != "" {
		pool, err := postgres.NewPool(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Error(ctx, "db_connection_failed", "failed to initialize journal database", err, nil)
			return err
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Error(ctx, "db_schema_failed", "failed to ensure journal schema", err, nil)
			return err
		}
		bookingOpts = append(bookingOpts, booking.WithJournal(postgres.NewBookingJournalRepo(pool)))
	}

	var status ports.StatusPublisher
	if cfg.RabbitMQ.URL != "" {
		rmq, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		status = rabbitmq.NewStatusPublisher(rmq)
	}

	sessions := session.NewStore(api, cache, log, session.WithBearer(cfg.Backends.AuthToken))
	bookings := booking.NewStore(api, log, cfg.Booking.ConfirmDelay, bookingOpts...)
	defer bookings.Close()
	intent := presence.NewStore(func() bool { return bookings.Current().Active() })

	presenter := notify.NewPresenter(log, notify.DefaultPromptTTL, notify.DefaultHistory)
	defer presenter.Close()
	bus := eventbus.New(log)

	realtime := websocket.NewManager(websocket.Options{
		URL:              cfg.Backends.RealtimeURL,
		Token:            cfg.Backends.AuthToken,
		Jar:              api.Jar(),
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		Backoff:          websocket.Backoff{Base: cfg.Realtime.ReconnectBase, Max: cfg.Realtime.ReconnectMax},
	}, service.RealtimeInputs(sessions, intent, bookings), bus, presenter, log)
	defer realtime.Close()

	var geo ports.Geolocator = location.Unavailable{}
	if cfg.Location.HasFixed {
		geo = location.NewStatic(cfg.Location.FixedLatitude, cfg.Location.FixedLongitude)
	}
	cadence := location.NewController(geo, api, realtime, presenter, log, location.Intervals{
		Active:        cfg.Location.ActiveInterval,
		Idle:          cfg.Location.IdleInterval,
		SampleTimeout: cfg.Location.PositionTimeout,
	}, service.CadenceTarget(sessions, intent, bookings))
	defer cadence.Close()

	svc := service.New(service.Deps{
		Session:   sessions,
		Presence:  intent,
		Booking:   bookings,
		Rides:     api,
		History:   api,
		Realtime:  realtime,
		Cadence:   cadence,
		Presenter: presenter,
		Bus:       bus,
		Status:    status,
		Log:       log,
	})
	defer svc.Close()

	realtime.Start(ctx)
	svc.Start(ctx)

	mux := http.NewServeMux()
	handler.NewControlHandler(svc, log).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Agent.Port),
		Handler:           withConcurrencyLimit(maxConcurrent, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	log.Info(ctx, "service_started", fmt.Sprintf("driver agent control API on port %d", cfg.Agent.Port),
		map[string]any{
			"port":          cfg.Agent.Port,
			"session_cache": cfg.SessionCache.Kind,
			"journal":       cfg.Database.URL != "",
			"status_pub":    status != nil,
		})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Error(ctx, "http_shutdown_failed", "failed to shut down control API", err, nil)
		}
		<-errCh
		log.Info(ctx, "service_stopped", "driver agent stopped", nil)
		return nil
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "control API terminated", err, map[string]any{"port": cfg.Agent.Port})
		}
		return err
	}
}

func sessionCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.SessionCache, func(), error) {
	switch cfg.SessionCache.Kind {
	case config.SessionCacheRedis:
		rdb, err := redis.New(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Error(ctx, "redis_connection_failed", "failed to connect to Redis", err, nil)
			return nil, nil, err
		}
		agentID := cfg.Agent.DriverID
		if agentID == "" {
			agentID = "default"
		}
		return redis.NewSessionCache(rdb, agentID, cfg.SessionCache.TTL), func() { _ = rdb.Close() }, nil
	case config.SessionCacheNone:
		return session.NoCache{}, func() {}, nil
	default:
		return session.NewFileCache(cfg.SessionCache.Path), func() {}, nil
	}
}

// withConcurrencyLimit caps in-flight control requests.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
