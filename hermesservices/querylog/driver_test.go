package querylog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lunagic/hermes/hermesservices/querylog"
	"gotest.tools/v3/assert"
)

var errStop = errors.New("stop consuming")

func testSuite(t *testing.T, driver querylog.Driver) {
	log, err := querylog.NewLog(t.Context(), driver, uuid.NewString())
	assert.NilError(t, err)

	sent := []querylog.Entry{
		{
			Driver:    "sqlite",
			Statement: "SELECT id FROM articles WHERE id = ?",
			Args:      []any{float64(1)},
			Took:      time.Millisecond,
			NumRows:   1,
			RanAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			Driver:    "sqlite",
			Statement: "DELETE FROM articles",
			Args:      []any{},
			Error:     "no such table: articles",
			RanAt:     time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC),
		},
	}

	for _, entry := range sent {
		assert.NilError(t, log.Record(t.Context(), entry))
	}

	ctx, cancel := context.WithTimeout(t.Context(), time.Second*30)
	defer cancel()

	received := []querylog.Entry{}
	consumeErr := log.Consume(ctx, func(ctx context.Context, entry querylog.Entry) error {
		received = append(received, entry)
		if len(received) == len(sent) {
			return errStop
		}

		return nil
	})
	assert.ErrorIs(t, consumeErr, errStop)
	assert.DeepEqual(t, received, sent)
}
