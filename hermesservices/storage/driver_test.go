package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lunagic/hermes/hermesservices/storage"
	"gotest.tools/v3/assert"
)

func testSuite(t *testing.T, driver storage.Driver) {
	prefix := uuid.NewString()
	fileName := prefix + "/rows.jsonl"
	fileContents := `{"id":1}` + "\n" + `{"id":2}` + "\n"

	assert.NilError(t, driver.IsReady(t.Context()))

	{ // Missing before Put
		found, err := driver.Exists(t.Context(), fileName)
		assert.NilError(t, err)
		assert.Assert(t, !found, "file found before putting it: %s", fileName)
	}

	{ // Put
		assert.NilError(t, driver.Put(t.Context(), fileName, strings.NewReader(fileContents)))
		t.Cleanup(func() {
			_ = driver.Delete(context.Background(), fileName)
		})
	}

	{ // Present after Put
		found, err := driver.Exists(t.Context(), fileName)
		assert.NilError(t, err)
		assert.Assert(t, found)
	}

	{ // Contents
		reader, err := driver.Get(t.Context(), fileName)
		assert.NilError(t, err)
		defer func() {
			_ = reader.Close()
		}()

		actualContents, err := io.ReadAll(reader)
		assert.NilError(t, err)
		assert.Equal(t, string(actualContents), fileContents)
	}

	{ // List by prefix
		paths, err := driver.List(t.Context(), prefix)
		assert.NilError(t, err)
		assert.DeepEqual(t, paths, []string{fileName})

		paths, err = driver.List(t.Context(), uuid.NewString())
		assert.NilError(t, err)
		assert.Equal(t, len(paths), 0)
	}

	{ // Delete
		assert.NilError(t, driver.Delete(t.Context(), fileName))

		found, err := driver.Exists(t.Context(), fileName)
		assert.NilError(t, err)
		assert.Assert(t, !found, "file found after deleting: %s", fileName)
	}

	{ // Deleting a missing file is not an error
		assert.NilError(t, driver.Delete(t.Context(), fileName))
	}
}
