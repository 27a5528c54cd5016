package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lunagic/hermes/hermesservices/cache"
	"github.com/lunagic/hermes/hermesservices/querylog"
)

type ServiceConfigFunc func(service *Service) error

func WithPostConnectFunc(callback func(db *sql.DB) error) ServiceConfigFunc {
	return func(service *Service) error {
		return callback(service.standardLibraryDB)
	}
}

func WithPreRunFunc(preRunFunc func(ctx context.Context, statement string, args []any) error) ServiceConfigFunc {
	return func(service *Service) error {
		service.preRunFuncs = append(service.preRunFuncs, preRunFunc)
		return nil
	}
}

func WithPostRunFunc(postRunFunc func(ctx context.Context) error) ServiceConfigFunc {
	return func(service *Service) error {
		service.postRunFuncs = append(service.postRunFuncs, postRunFunc)
		return nil
	}
}

func WithLogger(logger *slog.Logger) ServiceConfigFunc {
	return func(service *Service) error {
		service.logger = logger
		service.preRunFuncs = append(service.preRunFuncs, func(ctx context.Context, statement string, args []any) error {
			logger.Info("Database Run",
				"driver", service.driver.Name(),
				"statement", statement,
				"args", args,
			)

			return nil
		})

		return nil
	}
}

// WithStatementCache keeps up to size prepared statements, keyed by their
// SQL. Evicted statements are closed; a run that loses its statement to a
// concurrent eviction falls back to an unprepared statement.
func WithStatementCache(size int) ServiceConfigFunc {
	return func(service *Service) error {
		statements, err := lru.NewWithEvict(size, func(query string, stmt *sql.Stmt) {
			_ = stmt.Close()
		})
		if err != nil {
			return err
		}

		service.statements = statements

		return nil
	}
}

// WithResultCache serves select statements that carry a cache key from
// driver, storing fresh results for ttl.
func WithResultCache(driver cache.Driver, ttl time.Duration) ServiceConfigFunc {
	return func(service *Service) error {
		service.results = cache.NewRepository[string, cachedResult](driver, "hermes-result")
		service.resultTTL = ttl

		return nil
	}
}

// WithQueryLog records an entry for every statement run, including failed
// and cached ones.
func WithQueryLog(queryLog *querylog.Log) ServiceConfigFunc {
	return func(service *Service) error {
		service.queryLogs = append(service.queryLogs, queryLog)
		return nil
	}
}
