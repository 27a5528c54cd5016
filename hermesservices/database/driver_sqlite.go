package database

import (
	"database/sql"
	"fmt"

	"github.com/lunagic/hermes/hermes"
	_ "github.com/mattn/go-sqlite3"
)

func NewDriverSQLite(path string) Driver {
	return &driverSQLite{
		Path: path,
	}
}

type driverSQLite struct {
	hermes.StandardDialect
	Path string
}

func (driver *driverSQLite) Open() (*sql.DB, error) {
	return sql.Open(
		"sqlite3",
		fmt.Sprintf("file:%s?cache=shared&_foreign_keys=on", driver.Path),
	)
}

func (driver *driverSQLite) Name() string {
	return "sqlite"
}

func (driver *driverSQLite) TranslateFunction(name string, args []string) (string, bool) {
	switch name {
	case "CONCAT":
		return concatOperator(args), true
	case "NOW":
		return "DATETIME('now')", true
	case "CURRENT_DATE":
		return "DATE('now')", true
	case "CURRENT_TIME":
		return "TIME('now')", true
	case "RAND":
		return "(ABS(RANDOM()) / 9223372036854775807.0)", true
	case "DATEDIFF":
		if len(args) != 2 {
			return "", false
		}

		return fmt.Sprintf("CAST(JULIANDAY(%s) - JULIANDAY(%s) AS INTEGER)", args[0], args[1]), true
	}

	return "", false
}

// LimitOffset needs a LIMIT for OFFSET to parse; -1 means no limit.
func (driver *driverSQLite) LimitOffset(limit *int64, offset *int64) string {
	if limit == nil && offset != nil {
		return fmt.Sprintf("LIMIT -1 OFFSET %d", *offset)
	}

	return driver.StandardDialect.LimitOffset(limit, offset)
}

func (driver *driverSQLite) SupportsDistinctOn() bool {
	return false
}

// OrderedUnion is false since SQLite rejects parenthesized compound members.
func (driver *driverSQLite) OrderedUnion() bool {
	return false
}

func (driver *driverSQLite) usesLastInsertId() bool {
	return true
}

func (driver *driverSQLite) usesNumberedParameters() bool {
	return false
}
