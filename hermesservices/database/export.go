package database

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermesservices/storage"
)

// Export writes the rows left in result to filePath as JSON lines and
// returns how many rows were written.
func Export(
	ctx context.Context,
	driver storage.Driver,
	filePath string,
	result hermes.StatementResult,
) (int, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)

	count := 0
	for {
		row, found := result.Fetch()
		if !found {
			break
		}

		if err := encoder.Encode(row); err != nil {
			return count, err
		}

		count++
	}

	if err := driver.Put(ctx, filePath, buffer); err != nil {
		return 0, err
	}

	return count, nil
}
