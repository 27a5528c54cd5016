package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewDriverMemory() (Driver, error) {
	return &driverMemory{
		mutex:   &sync.Mutex{},
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}, nil
}

type driverMemory struct {
	mutex   *sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	sets    int
}

func (driver *driverMemory) Delete(ctx context.Context, key string) error {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	delete(driver.entries, key)

	return nil
}

func (driver *driverMemory) Get(ctx context.Context, key string) (string, error) {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	entry, found := driver.entries[key]
	if !found {
		return "", ErrNotFound
	}

	if !driver.now().Before(entry.expiresAt) {
		delete(driver.entries, key)
		return "", ErrNotFound
	}

	return entry.value, nil
}

func (driver *driverMemory) Set(ctx context.Context, key string, value string, duration time.Duration) error {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	driver.entries[key] = memoryEntry{
		value:     value,
		expiresAt: driver.now().Add(duration),
	}

	// Sweep expired entries every so often so keys that are never read again
	// do not pile up.
	driver.sets++
	if driver.sets%128 == 0 {
		driver.sweep()
	}

	return nil
}

func (driver *driverMemory) sweep() {
	now := driver.now()
	for key, entry := range driver.entries {
		if now.Before(entry.expiresAt) {
			continue
		}

		delete(driver.entries, key)
	}
}
