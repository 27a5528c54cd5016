package hermes

import (
	"errors"
	"strings"
)

type clauseRenderer struct {
	name   string
	render func(q *Query, binder *ValueBinder) (string, error)
}

// compiler renders the clauses of a query in statement order. Fragments
// that render empty are left out along with their keyword.
type compiler struct {
	dialect Dialect
}

func newCompiler(dialect Dialect) *compiler {
	if dialect == nil {
		dialect = DefaultDialect()
	}

	return &compiler{dialect: dialect}
}

func (c *compiler) clauses(statementType StatementType) []clauseRenderer {
	switch statementType {
	case StatementInsert:
		return []clauseRenderer{
			{"insert", c.insertClause},
			{"values", c.valuesClause},
			{"epilog", c.epilogClause},
		}
	case StatementUpdate:
		return []clauseRenderer{
			{"update", c.updateClause},
			{"set", c.setClause},
			{"where", c.whereClause},
			{"epilog", c.epilogClause},
		}
	case StatementDelete:
		return []clauseRenderer{
			{"delete", c.deleteClause},
			{"from", c.fromClause},
			{"where", c.whereClause},
			{"epilog", c.epilogClause},
		}
	}

	return []clauseRenderer{
		{"select", c.selectClause},
		{"from", c.fromClause},
		{"join", c.joinClause},
		{"where", c.whereClause},
		{"group", c.groupClause},
		{"having", c.havingClause},
		{"order", c.orderClause},
		{"limit", c.limitClause},
		{"union", c.unionClause},
		{"epilog", c.epilogClause},
	}
}

func (c *compiler) compile(q *Query, binder *ValueBinder) (string, error) {
	fragments := []string{}
	for _, clause := range c.clauses(q.statementType) {
		sql, err := clause.render(q, binder)
		if err != nil {
			return "", inClause(clause.name, err)
		}

		if sql == "" {
			continue
		}

		fragments = append(fragments, sql)
	}

	return strings.Join(fragments, " "), nil
}

func (c *compiler) selectClause(q *Query, binder *ValueBinder) (string, error) {
	sql := "SELECT"
	if q.distinct {
		switch {
		case len(q.distinctOn) == 0:
			sql += " DISTINCT"
		case c.dialect.SupportsDistinctOn():
			fields, err := c.list(binder, q.distinctOn)
			if err != nil {
				return "", err
			}

			sql += " DISTINCT ON (" + strings.Join(fields, ", ") + ")"
		}
	}

	if len(q.selectFields) == 0 {
		return sql + " *", nil
	}

	fields := make([]string, 0, len(q.selectFields))
	for _, field := range q.selectFields {
		rendered, err := compileField(binder, field.Value)
		if err != nil {
			return "", err
		}

		if field.Alias != "" {
			rendered += " AS " + field.Alias
		}

		fields = append(fields, rendered)
	}

	return sql + " " + strings.Join(fields, ", "), nil
}

func (c *compiler) fromClause(q *Query, binder *ValueBinder) (string, error) {
	if len(q.from) == 0 {
		if q.statementType == StatementDelete {
			return "", errors.New("a table is required")
		}

		return "", nil
	}

	tables := make([]string, 0, len(q.from))
	for _, table := range q.from {
		rendered, err := c.table(binder, table.Value, table.Alias)
		if err != nil {
			return "", err
		}

		tables = append(tables, rendered)
	}

	return "FROM " + strings.Join(tables, ", "), nil
}

// table renders a table reference followed by its alias.
func (c *compiler) table(binder *ValueBinder, table any, alias string) (string, error) {
	rendered, err := compileField(binder, table)
	if err != nil {
		return "", err
	}

	if alias != "" {
		rendered += " " + alias
	}

	return rendered, nil
}

func (c *compiler) joinClause(q *Query, binder *ValueBinder) (string, error) {
	joins := make([]string, 0, len(q.joins))
	for _, entry := range q.joins {
		table, err := c.table(binder, entry.table, entry.alias)
		if err != nil {
			return "", err
		}

		conditions, err := entry.conditions.SQL(binder)
		if err != nil {
			return "", err
		}

		if conditions == "" {
			conditions = "1 = 1"
		}

		joins = append(joins, entry.typ+" JOIN "+table+" ON "+conditions)
	}

	return strings.Join(joins, " "), nil
}

func (c *compiler) whereClause(q *Query, binder *ValueBinder) (string, error) {
	return c.conditions("WHERE", q.where, binder)
}

func (c *compiler) havingClause(q *Query, binder *ValueBinder) (string, error) {
	return c.conditions("HAVING", q.having, binder)
}

func (c *compiler) conditions(keyword string, root *QueryExpression, binder *ValueBinder) (string, error) {
	if root == nil {
		return "", nil
	}

	sql, err := root.SQL(binder)
	if err != nil || sql == "" {
		return "", err
	}

	return keyword + " " + sql, nil
}

// groupClause also carries DISTINCT ON fields for dialects without it.
func (c *compiler) groupClause(q *Query, binder *ValueBinder) (string, error) {
	fields := q.group
	if q.distinct && len(q.distinctOn) > 0 && !c.dialect.SupportsDistinctOn() {
		fields = append(append([]any{}, q.distinctOn...), q.group...)
	}

	if len(fields) == 0 {
		return "", nil
	}

	rendered, err := c.list(binder, fields)
	if err != nil {
		return "", err
	}

	seen := map[string]bool{}
	unique := make([]string, 0, len(rendered))
	for _, field := range rendered {
		if seen[field] {
			continue
		}

		seen[field] = true
		unique = append(unique, field)
	}

	return "GROUP BY " + strings.Join(unique, ", "), nil
}

func (c *compiler) orderClause(q *Query, binder *ValueBinder) (string, error) {
	if len(q.order) == 0 {
		return "", nil
	}

	fields, err := c.list(binder, q.order)
	if err != nil {
		return "", err
	}

	return "ORDER BY " + strings.Join(fields, ", "), nil
}

func (c *compiler) limitClause(q *Query, binder *ValueBinder) (string, error) {
	if q.limit == nil && q.offset == nil {
		return "", nil
	}

	return c.dialect.LimitOffset(q.limit, q.offset), nil
}

func (c *compiler) unionClause(q *Query, binder *ValueBinder) (string, error) {
	unions := make([]string, 0, len(q.unions))
	for _, entry := range q.unions {
		sql, err := entry.query.SQL(binder)
		if err != nil {
			return "", err
		}

		if c.dialect.OrderedUnion() {
			sql = "(" + sql + ")"
		}

		keyword := "UNION"
		if entry.all {
			keyword = "UNION ALL"
		}

		unions = append(unions, keyword+" "+sql)
	}

	return strings.Join(unions, " "), nil
}

func (c *compiler) epilogClause(q *Query, binder *ValueBinder) (string, error) {
	return compileExpression(binder, q.epilog)
}

func (c *compiler) insertClause(q *Query, binder *ValueBinder) (string, error) {
	if q.insertTable == "" {
		return "", errors.New("a table is required")
	}

	return "INSERT INTO " + q.insertTable + " (" + strings.Join(q.insertColumns, ", ") + ")", nil
}

// valuesClause renders either the rows, in insert column order, or the
// query whose rows are inserted. Columns missing from a row insert NULL.
func (c *compiler) valuesClause(q *Query, binder *ValueBinder) (string, error) {
	if q.valueQuery != nil {
		return q.valueQuery.SQL(binder)
	}

	if len(q.valueRows) == 0 {
		return "", errors.New("no values to insert")
	}

	rows := make([]string, 0, len(q.valueRows))
	for _, row := range q.valueRows {
		values := make([]string, 0, len(q.insertColumns))
		for _, column := range q.insertColumns {
			typ, found := q.insertTypes[column]
			if !found {
				typ = q.typeMap.Type(column)
			}

			value, err := compileValue(binder, row[column], typ)
			if err != nil {
				return "", &CompilationError{Field: column, Err: err}
			}

			values = append(values, value)
		}

		rows = append(rows, "("+strings.Join(values, ", ")+")")
	}

	return "VALUES " + strings.Join(rows, ", "), nil
}

func (c *compiler) updateClause(q *Query, binder *ValueBinder) (string, error) {
	if q.updateTable == nil {
		return "", errors.New("a table is required")
	}

	table, err := compileField(binder, q.updateTable)
	if err != nil {
		return "", err
	}

	return "UPDATE " + table, nil
}

func (c *compiler) setClause(q *Query, binder *ValueBinder) (string, error) {
	if len(q.assignments) == 0 {
		return "", errors.New("no fields to set")
	}

	assignments := make([]string, 0, len(q.assignments))
	for _, expression := range q.assignments {
		sql, err := compileExpression(binder, expression)
		if err != nil {
			return "", err
		}

		assignments = append(assignments, sql)
	}

	return "SET " + strings.Join(assignments, ", "), nil
}

func (c *compiler) deleteClause(q *Query, binder *ValueBinder) (string, error) {
	return "DELETE", nil
}

// list renders fields that are either verbatim strings or expressions.
func (c *compiler) list(binder *ValueBinder, fields []any) ([]string, error) {
	rendered := make([]string, 0, len(fields))
	for _, field := range fields {
		sql, err := compileField(binder, field)
		if err != nil {
			return nil, err
		}

		rendered = append(rendered, sql)
	}

	return rendered, nil
}

// assignment renders field = value inside UPDATE ... SET.
type assignment struct {
	field string
	value any
	typ   string
}

func (assignment *assignment) SQL(binder *ValueBinder) (string, error) {
	value, err := compileValue(binder, assignment.value, assignment.typ)
	if err != nil {
		return "", err
	}

	return assignment.field + " = " + value, nil
}
