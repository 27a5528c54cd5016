package database

import (
	"database/sql"
	"errors"

	"github.com/lunagic/hermes/hermes"
)

var (
	ErrNoRows     = errors.New("no rows found")
	ErrBlankQuery = errors.New("blank query")
)

// Driver opens connections and supplies the dialect queries built for it
// are compiled with.
type Driver interface {
	hermes.Dialect
	Open() (*sql.DB, error)
	usesLastInsertId() bool
	usesNumberedParameters() bool
}
