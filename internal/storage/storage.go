package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slot-lobby/internal/config"
)

var ErrNotFound = errors.New("not found")

// Session keys. Their names are shared with the embedded runtimes and must
// stay stable.
const (
	KeyToken     = "token"
	KeyUsername  = "username"
	KeyUserType  = "userType"
	KeyCSRFToken = "csrfToken"
	KeyWSInfo    = "ws_info"
)

// Durable keys.
const (
	KeyDeviceType  = "deviceType"
	KeyPersistRoot = "persist:root"
	musicKeySuffix = "_music"
	soundKeySuffix = "_sound"
)

func MusicKey(username string) string { return username + musicKeySuffix }
func SoundKey(username string) string { return username + soundKeySuffix }

// Scope is a synchronous key/value scope that lives as long as the process,
// the equivalent of a browser tab's session storage.
type Scope interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	Clear()
}

// Durable survives restarts. Get returns ErrNotFound for missing keys.
type Durable interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close()
}

// OpenDurable builds the durable scope selected by cfg.Durable.
func OpenDurable(ctx context.Context, cfg config.StorageConfig) (Durable, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Durable)) {
	case "", "memory":
		return NewMemoryDurable(), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres durable store requires POSTGRES_DSN")
		}
		return NewPostgres(ctx, cfg.PostgresDSN, cfg.Namespace)
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("redis durable store requires REDIS_URL")
		}
		return NewRedis(ctx, cfg.RedisURL, cfg.Namespace)
	default:
		return nil, fmt.Errorf("unknown durable store %q", cfg.Durable)
	}
}
