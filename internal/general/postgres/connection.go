package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ride-driver/internal/general/logger"
)

// NewPool parses the DSN, tunes the pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string, log *logger.Logger) (*pgxpool.Pool, error) {
	start := time.Now()

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}

	pcfg.ConnConfig.ConnectTimeout = 5 * time.Second
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = make(map[string]string, 1)
	}
	pcfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	// the agent writes a handful of rows per ride
	pcfg.MaxConns = 4
	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	log.Info(ctx, "db_config_check", "journal database parameters", map[string]any{
		"host":           pcfg.ConnConfig.Host,
		"port":           pcfg.ConnConfig.Port,
		"database":       pcfg.ConnConfig.Database,
		"password_empty": pcfg.ConnConfig.Password == "",
	})

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	log.Info(ctx, "db_connected", "connected to journal database", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return pool, nil
}
