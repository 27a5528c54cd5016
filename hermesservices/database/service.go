package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermesservices/cache"
	"github.com/lunagic/hermes/hermesservices/database/internal/utils"
	"github.com/lunagic/hermes/hermesservices/querylog"
	"github.com/lunagic/hermes/hermestools"
)

// Service runs compiled statements against a database/sql connection. It
// implements hermes.Connection.
type Service struct {
	driver            Driver
	standardLibraryDB *sql.DB
	logger            *slog.Logger
	preRunFuncs       []func(ctx context.Context, statement string, args []any) error
	postRunFuncs      []func(ctx context.Context) error
	statements        *lru.Cache[string, *sql.Stmt]
	results           *cache.Repository[string, cachedResult]
	resultTTL         time.Duration
	queryLogs         []*querylog.Log
}

func New(
	driver Driver,
	configFuncs ...ServiceConfigFunc,
) (*Service, error) {
	db, err := driver.Open()
	if err != nil {
		return nil, err
	}

	service := &Service{
		driver:            driver,
		standardLibraryDB: db,
		logger:            slog.New(slog.DiscardHandler),
		preRunFuncs:       []func(ctx context.Context, statement string, args []any) error{},
		postRunFuncs:      []func(ctx context.Context) error{},
	}

	for _, configFunc := range configFuncs {
		if err := configFunc(service); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return service, nil
}

func (service *Service) Ping() error {
	return service.standardLibraryDB.Ping()
}

// Close releases cached prepared statements and the connection pool.
func (service *Service) Close() error {
	if service.statements != nil {
		service.statements.Purge()
	}

	return service.standardLibraryDB.Close()
}

func (service *Service) Dialect() hermes.Dialect {
	return service.driver
}

// NewQuery starts a query that compiles for, and executes on, this service.
func (service *Service) NewQuery(options ...hermes.QueryOption) *hermes.Query {
	return hermes.NewQuery(service, options...)
}

func (service *Service) Run(ctx context.Context, statement hermes.CompiledStatement) (hermes.StatementResult, error) {
	preparedQuery, preparedArgs, err := utils.Prepare(statement.SQL, statement.Parameters, service.driver.usesNumberedParameters())
	if err != nil {
		return nil, err
	}

	if preparedQuery == "" {
		return nil, ErrBlankQuery
	}

	entry := querylog.Entry{
		Driver:    service.driver.Name(),
		Statement: preparedQuery,
		Args:      preparedArgs,
		RanAt:     time.Now().UTC(),
	}

	if result, found := service.cachedResult(ctx, statement); found {
		entry.Cached = true
		entry.NumRows = result.RowCount()
		service.record(ctx, entry)

		return result, nil
	}

	for _, preRunFunc := range service.preRunFuncs {
		if err := preRunFunc(ctx, preparedQuery, preparedArgs); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	result, rows, err := service.run(ctx, statement.Type, preparedQuery, preparedArgs)
	entry.Took = time.Since(start)
	if err != nil {
		entry.Error = err.Error()
		service.record(ctx, entry)

		return nil, err
	}

	entry.NumRows = result.RowCount()
	service.record(ctx, entry)

	for _, postRunFunc := range service.postRunFuncs {
		if err := postRunFunc(ctx); err != nil {
			return nil, err
		}
	}

	if statement.Type == hermes.StatementSelect {
		service.storeResult(ctx, statement, rows)
	}

	return result, nil
}

func (service *Service) run(
	ctx context.Context,
	statementType hermes.StatementType,
	query string,
	args []any,
) (hermes.StatementResult, []hermes.Row, error) {
	if returnsRows(statementType, query) {
		sqlRows, err := service.query(ctx, query, args)
		if err != nil {
			return nil, nil, err
		}
		defer func() {
			_ = sqlRows.Close()
		}()

		rows, err := scanRows(sqlRows)
		if err != nil {
			return nil, nil, err
		}

		return hermes.NewRowsResult(rows, -1, 0), rows, nil
	}

	result, err := service.exec(ctx, query, args)
	if err != nil {
		return nil, nil, err
	}

	rowCount, err := result.RowsAffected()
	if err != nil {
		return nil, nil, err
	}

	lastInsertID := int64(0)
	if statementType == hermes.StatementInsert && service.driver.usesLastInsertId() {
		lastInsertID, err = result.LastInsertId()
		if err != nil {
			return nil, nil, err
		}
	}

	return hermes.NewRowsResult([]hermes.Row{}, rowCount, lastInsertID), nil, nil
}

func (service *Service) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	stmt, err := service.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	return service.queryStatement(ctx, stmt, query, args)
}

// queryStatement runs query unprepared when stmt is nil or was closed by a
// cache eviction after prepare handed it out.
func (service *Service) queryStatement(ctx context.Context, stmt *sql.Stmt, query string, args []any) (*sql.Rows, error) {
	if stmt != nil {
		rows, err := stmt.QueryContext(ctx, args...)
		if !isStatementClosed(err) {
			return rows, err
		}

		service.logger.Debug("Statement Evicted", "statement", query)
	}

	return service.standardLibraryDB.QueryContext(ctx, query, args...)
}

func (service *Service) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	stmt, err := service.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	return service.execStatement(ctx, stmt, query, args)
}

func (service *Service) execStatement(ctx context.Context, stmt *sql.Stmt, query string, args []any) (sql.Result, error) {
	if stmt != nil {
		result, err := stmt.ExecContext(ctx, args...)
		if !isStatementClosed(err) {
			return result, err
		}

		service.logger.Debug("Statement Evicted", "statement", query)
	}

	return service.standardLibraryDB.ExecContext(ctx, query, args...)
}

// isStatementClosed matches the unexported error database/sql returns for a
// closed *sql.Stmt.
func isStatementClosed(err error) bool {
	return err != nil && err.Error() == "sql: statement is closed"
}

// prepare returns nil when statement caching is off.
func (service *Service) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if service.statements == nil {
		return nil, nil
	}

	if stmt, found := service.statements.Get(query); found {
		return stmt, nil
	}

	stmt, err := service.standardLibraryDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	service.statements.Add(query, stmt)

	return stmt, nil
}

func (service *Service) record(ctx context.Context, entry querylog.Entry) {
	for _, queryLog := range service.queryLogs {
		if err := queryLog.Record(ctx, entry); err != nil {
			service.logger.Error("Query Log Record",
				"topic", queryLog.Topic(),
				"error", err,
			)
		}
	}
}

func (service *Service) cachedResult(ctx context.Context, statement hermes.CompiledStatement) (hermes.StatementResult, bool) {
	if service.results == nil || statement.CacheKey == "" || statement.Type != hermes.StatementSelect {
		return nil, false
	}

	cached, err := service.results.Get(ctx, statement.CacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			service.logger.Error("Result Cache Get", "key", statement.CacheKey, "error", err)
		}

		return nil, false
	}

	rows, err := cached.decode()
	if err != nil {
		service.logger.Error("Result Cache Decode", "key", statement.CacheKey, "error", err)
		return nil, false
	}

	return hermes.NewRowsResult(rows, -1, 0), true
}

func (service *Service) storeResult(ctx context.Context, statement hermes.CompiledStatement, rows []hermes.Row) {
	if service.results == nil || statement.CacheKey == "" {
		return
	}

	if err := service.results.Set(ctx, statement.CacheKey, encodeResult(rows), service.resultTTL); err != nil {
		service.logger.Error("Result Cache Set", "key", statement.CacheKey, "error", err)
	}
}

// returnsRows reports whether the statement produces a result set: every
// select, and writes with a RETURNING clause.
func returnsRows(statementType hermes.StatementType, query string) bool {
	if statementType == hermes.StatementSelect {
		return true
	}

	return strings.Contains(strings.ToUpper(query), " RETURNING ")
}

func scanRows(sqlRows *sql.Rows) ([]hermes.Row, error) {
	columnTypes, err := sqlRows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := hermestools.Map(columnTypes, func(columnType *sql.ColumnType) string {
		return columnType.Name()
	})
	binary := hermestools.Map(columnTypes, isBinaryColumn)

	rows := []hermes.Row{}
	for sqlRows.Next() {
		values := make([]any, len(columns))
		scanFields := make([]any, len(columns))
		for i := range values {
			scanFields[i] = &values[i]
		}

		if err := sqlRows.Scan(scanFields...); err != nil {
			return nil, err
		}

		row := hermes.Row{}
		for i, column := range columns {
			// Drivers hand back text as []byte; keep bytes only for binary columns
			if raw, ok := values[i].([]byte); ok && !binary[i] {
				row[column] = string(raw)
				continue
			}

			row[column] = values[i]
		}

		rows = append(rows, row)
	}

	return rows, sqlRows.Err()
}

func isBinaryColumn(columnType *sql.ColumnType) bool {
	name := strings.ToUpper(columnType.DatabaseTypeName())
	for _, binaryType := range []string{"BLOB", "BINARY", "BYTEA"} {
		if strings.Contains(name, binaryType) {
			return true
		}
	}

	return false
}
