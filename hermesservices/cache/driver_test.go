package cache_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lunagic/hermes/hermesservices/cache"
	"gotest.tools/v3/assert"
)

func testSuite(t *testing.T, driver cache.Driver) {
	key := uuid.NewString()
	value := `[{"id":1}]`

	{ // Missing keys report ErrNotFound
		_, err := driver.Get(t.Context(), key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	}

	{ // Set then get
		assert.NilError(t, driver.Set(t.Context(), key, value, time.Second*30))

		actualValue, err := driver.Get(t.Context(), key)
		assert.NilError(t, err)
		assert.Equal(t, actualValue, value)
	}

	{ // Delete
		assert.NilError(t, driver.Delete(t.Context(), key))

		_, err := driver.Get(t.Context(), key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	}

	{ // Expiration
		key = uuid.NewString()
		assert.NilError(t, driver.Set(t.Context(), key, value, time.Second))

		actualValue, err := driver.Get(t.Context(), key)
		assert.NilError(t, err)
		assert.Equal(t, actualValue, value)

		time.Sleep(time.Second * 2)

		_, err = driver.Get(t.Context(), key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	}

	{ // Repository round trip
		type cachedRows struct {
			IDs []int64 `json:"ids"`
		}

		repository := cache.NewRepository[string, cachedRows](driver, "hermes")
		key = uuid.NewString()

		_, err := repository.Get(t.Context(), key)
		assert.ErrorIs(t, err, cache.ErrNotFound)

		assert.NilError(t, repository.Set(t.Context(), key, cachedRows{IDs: []int64{1, 2}}, time.Minute))

		actual, err := repository.Get(t.Context(), key)
		assert.NilError(t, err)
		assert.DeepEqual(t, actual, cachedRows{IDs: []int64{1, 2}})

		assert.NilError(t, repository.Delete(t.Context(), key))
		_, err = repository.Get(t.Context(), key)
		assert.ErrorIs(t, err, cache.ErrNotFound)
	}
}
