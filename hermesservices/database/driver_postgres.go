package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/lunagic/hermes/hermes"
)

func NewDriverPostgres(config DriverPostgresConfig) Driver {
	return &driverPostgres{
		config: config,
	}
}

type DriverPostgresConfig struct {
	Host string
	Port int
	User string
	Pass string
	Name string
}

type driverPostgres struct {
	hermes.StandardDialect
	config DriverPostgresConfig
}

func (driver *driverPostgres) Open() (*sql.DB, error) {
	return sql.Open(
		"postgres",
		fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			driver.config.Host,
			driver.config.Port,
			driver.config.User,
			driver.config.Pass,
			driver.config.Name,
		),
	)
}

func (driver *driverPostgres) Name() string {
	return "postgres"
}

func (driver *driverPostgres) TranslateFunction(name string, args []string) (string, bool) {
	switch name {
	case "CONCAT":
		// CONCAT takes "any" arguments, which leaves bound parameters untyped
		return concatOperator(args), true
	case "CURRENT_DATE":
		return "CURRENT_DATE", true
	case "CURRENT_TIME":
		return "CURRENT_TIME", true
	case "RAND":
		return "RANDOM()", true
	case "DATEDIFF":
		if len(args) != 2 {
			return "", false
		}

		return fmt.Sprintf("(CAST(%s AS DATE) - CAST(%s AS DATE))", args[0], args[1]), true
	}

	return "", false
}

// Postgres has no LastInsertId; add a RETURNING epilog instead.
func (driver *driverPostgres) usesLastInsertId() bool {
	return false
}

func (driver *driverPostgres) usesNumberedParameters() bool {
	return true
}

func concatOperator(args []string) string {
	return "(" + strings.Join(args, " || ") + ")"
}
