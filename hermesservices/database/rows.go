package database

import (
	"context"

	"github.com/lunagic/hermes/hermes"
)

// First executes q and returns its first row, or ErrNoRows when the result
// is empty.
func First(ctx context.Context, q *hermes.Query) (hermes.Row, error) {
	result, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}

	row, found := result.Fetch()
	if !found {
		return nil, ErrNoRows
	}

	return row, nil
}
