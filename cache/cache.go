package cache

import (
	"context"
	"time"
)

// Cache is an abstraction layer for cache operations.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
