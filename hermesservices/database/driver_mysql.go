package database

import (
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/go-sql-driver/mysql"
	"github.com/lunagic/hermes/hermes"
)

func NewDriverMySQL(config DriverMySQLConfig) Driver {
	return &driverMySQL{
		config: config,
	}
}

type DriverMySQLConfig struct {
	Host string
	Port int
	User string
	Pass string
	Name string
}

type driverMySQL struct {
	hermes.StandardDialect
	config DriverMySQLConfig
}

func (driver *driverMySQL) Open() (*sql.DB, error) {
	_ = mysql.SetLogger(log.New(io.Discard, "", log.LstdFlags))

	return sql.Open("mysql", fmt.Sprintf(
		"%s:%s@(%s:%d)/%s?parseTime=true",
		driver.config.User,
		driver.config.Pass,
		driver.config.Host,
		driver.config.Port,
		driver.config.Name,
	))
}

func (driver *driverMySQL) Name() string {
	return "mysql"
}

// LimitOffset uses the largest unsigned BIGINT as the limit when only an
// offset is given.
func (driver *driverMySQL) LimitOffset(limit *int64, offset *int64) string {
	if limit == nil && offset != nil {
		return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", *offset)
	}

	return driver.StandardDialect.LimitOffset(limit, offset)
}

func (driver *driverMySQL) SupportsDistinctOn() bool {
	return false
}

func (driver *driverMySQL) usesLastInsertId() bool {
	return true
}

func (driver *driverMySQL) usesNumberedParameters() bool {
	return false
}
