package hermes

import (
	"context"
)

// Connection executes compiled statements. The database service is the
// usual implementation.
type Connection interface {
	Dialect() Dialect
	Run(ctx context.Context, statement CompiledStatement) (StatementResult, error)
}

// CompiledStatement is the output of a compile: SQL with named placeholders
// and the driver values for each of them.
type CompiledStatement struct {
	Type     StatementType
	SQL      string
	Bindings []Binding
	// Parameters maps each placeholder token to its converted driver value.
	Parameters map[string]any
	CacheKey   string
}

// Args returns the driver values in placeholder order.
func (statement CompiledStatement) Args() []any {
	args := make([]any, 0, len(statement.Bindings))
	for _, binding := range statement.Bindings {
		args = append(args, statement.Parameters[binding.Placeholder])
	}

	return args
}

type Row map[string]any

type StatementResult interface {
	// Fetch returns the next row, or false when the rows are exhausted.
	Fetch() (Row, bool)
	FetchAll() []Row
	RowCount() int64
	LastInsertID() (int64, error)
}

type ResultDecorator func(row Row) Row

// decoratedResult applies decorators in order to every fetched row.
type decoratedResult struct {
	result     StatementResult
	decorators []ResultDecorator
}

func decorate(result StatementResult, decorators []ResultDecorator) StatementResult {
	if len(decorators) == 0 {
		return result
	}

	return &decoratedResult{result: result, decorators: decorators}
}

func (result *decoratedResult) apply(row Row) Row {
	for _, decorator := range result.decorators {
		row = decorator(row)
	}

	return row
}

func (result *decoratedResult) Fetch() (Row, bool) {
	row, found := result.result.Fetch()
	if !found {
		return nil, false
	}

	return result.apply(row), true
}

func (result *decoratedResult) FetchAll() []Row {
	rows := result.result.FetchAll()
	for i, row := range rows {
		rows[i] = result.apply(row)
	}

	return rows
}

func (result *decoratedResult) RowCount() int64 {
	return result.result.RowCount()
}

func (result *decoratedResult) LastInsertID() (int64, error) {
	return result.result.LastInsertID()
}

// castResult serves rows whose typed columns were converted back into host
// values when the statement ran.
type castResult struct {
	StatementResult
	rows *RowsResult
}

func (result *castResult) Fetch() (Row, bool) {
	return result.rows.Fetch()
}

func (result *castResult) FetchAll() []Row {
	return result.rows.FetchAll()
}

// castRows converts every column with a known logical type. The first value
// that does not convert fails the whole result with a *TypeConversionError.
func castRows(result StatementResult, registry *TypeRegistry, columnTypes map[string]string) (StatementResult, error) {
	if len(columnTypes) == 0 {
		return result, nil
	}

	rows := result.FetchAll()
	for _, row := range rows {
		for column, value := range row {
			typ, found := columnTypes[column]
			if !found || typ == "" {
				continue
			}

			converted, err := registry.FromDriver(typ, value)
			if err != nil {
				return nil, err
			}

			row[column] = converted
		}
	}

	return &castResult{StatementResult: result, rows: NewRowsResult(rows, -1, 0)}, nil
}

// RowsResult is a StatementResult over rows already held in memory.
type RowsResult struct {
	rows         []Row
	cursor       int
	rowCount     int64
	lastInsertID int64
}

func NewRowsResult(rows []Row, rowCount int64, lastInsertID int64) *RowsResult {
	if rowCount < 0 {
		rowCount = int64(len(rows))
	}

	return &RowsResult{
		rows:         rows,
		rowCount:     rowCount,
		lastInsertID: lastInsertID,
	}
}

func (result *RowsResult) Fetch() (Row, bool) {
	if result.cursor >= len(result.rows) {
		return nil, false
	}

	row := result.rows[result.cursor]
	result.cursor++

	return row, true
}

func (result *RowsResult) FetchAll() []Row {
	rows := result.rows[result.cursor:]
	result.cursor = len(result.rows)

	return rows
}

func (result *RowsResult) RowCount() int64 {
	return result.rowCount
}

func (result *RowsResult) LastInsertID() (int64, error) {
	return result.lastInsertID, nil
}
