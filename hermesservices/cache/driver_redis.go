package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type DriverRedisConfig struct {
	Host   string
	Number int
	Pass   string
	Port   int
	User   string
	// Namespace is prepended to every key so several services can share
	// one database. Defaults to "hermes".
	Namespace string
}

func NewDriverRedis(config DriverRedisConfig) (Driver, error) {
	namespace := config.Namespace
	if namespace == "" {
		namespace = "hermes"
	}

	return &driverRedis{
		namespace: namespace,
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
			Username: config.User,
			Password: config.Pass,
			DB:       config.Number,
		}),
	}, nil
}

type driverRedis struct {
	namespace string
	client    *redis.Client
}

func (driver *driverRedis) key(key string) string {
	return driver.namespace + ":" + key
}

func (driver *driverRedis) Get(ctx context.Context, key string) (string, error) {
	payload, err := driver.client.Get(ctx, driver.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}

	return payload, nil
}

// Set with a zero duration keeps the value until it is deleted.
func (driver *driverRedis) Set(ctx context.Context, key string, value string, duration time.Duration) error {
	return driver.client.Set(ctx, driver.key(key), value, duration).Err()
}

// Delete unlinks the key so large result sets are freed in the background.
func (driver *driverRedis) Delete(ctx context.Context, key string) error {
	return driver.client.Unlink(ctx, driver.key(key)).Err()
}
