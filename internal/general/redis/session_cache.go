package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-driver/internal/domain/driver"
)

// SessionCache keeps the last validated identity under one key per agent.
type SessionCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, agentID string, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, key: sessionKey(agentID), ttl: ttl}
}

func sessionKey(agentID string) string {
	if agentID == "" {
		agentID = "default"
	}
	return "driveragent:session:" + agentID
}

func (c *SessionCache) Load(ctx context.Context) (driver.Identity, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return driver.Identity{}, false, nil
	}
	if err != nil {
		return driver.Identity{}, false, fmt.Errorf("redis get session: %w", err)
	}

	var id driver.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		// a corrupt entry is treated as absent and removed
		_ = c.rdb.Del(ctx, c.key).Err()
		return driver.Identity{}, false, nil
	}
	return id, id.DriverID != "", nil
}

func (c *SessionCache) Save(ctx context.Context, id driver.Identity) error {
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
