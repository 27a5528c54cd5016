package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing and expired keys.
var ErrNotFound = errors.New("cache entry not found")

// Driver stores encoded result sets under a cache key until they expire.
type Driver interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, duration time.Duration) error
	Delete(ctx context.Context, key string) error
}
