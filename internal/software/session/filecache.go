package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ride-driver/internal/domain/driver"
)

// FileCache persists the identity as a small JSON file, written atomically
// via rename.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load(_ context.Context) (driver.Identity, bool, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return driver.Identity{}, false, nil
	}
	if err != nil {
		return driver.Identity{}, false, fmt.Errorf("read session cache: %w", err)
	}

	var id driver.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		_ = os.Remove(c.path)
		return driver.Identity{}, false, nil
	}
	return id, id.DriverID != "", nil
}

func (c *FileCache) Save(_ context.Context, id driver.Identity) error {
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session cache dir: %w", err)
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}

func (c *FileCache) Delete(_ context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session cache: %w", err)
	}
	return nil
}

// NoCache never remembers anything; every start waits for validation.
type NoCache struct{}

func (NoCache) Load(context.Context) (driver.Identity, bool, error) { return driver.Identity{}, false, nil }
func (NoCache) Save(context.Context, driver.Identity) error          { return nil }
func (NoCache) Delete(context.Context) error                         { return nil }
