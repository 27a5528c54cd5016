package hermes

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type StatementType string

const (
	StatementSelect StatementType = "select"
	StatementInsert StatementType = "insert"
	StatementUpdate StatementType = "update"
	StatementDelete StatementType = "delete"
)

const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
	JoinRight = "RIGHT"
)

// JoinClause describes one joined table. Table is a table name or a *Query
// used as a derived table. Type defaults to INNER.
type JoinClause struct {
	Table      any
	Alias      string
	Type       string
	Conditions any
}

type join struct {
	table      any
	alias      string
	typ        string
	conditions *QueryExpression
}

type union struct {
	query *Query
	all   bool
}

// SelectFunc is invoked with the query and returns the fields to select.
type SelectFunc func(q *Query) []any

type QueryOption func(q *Query)

func WithDialect(dialect Dialect) QueryOption {
	return func(q *Query) {
		q.dialect = dialect
	}
}

func WithTypeMap(typeMap *TypeMap) QueryOption {
	return func(q *Query) {
		q.typeMap = typeMap
	}
}

func WithTypeRegistry(registry *TypeRegistry) QueryOption {
	return func(q *Query) {
		q.types = registry
	}
}

// Query builds a single statement. Every clause method appends to what is
// already there; the Replace variants overwrite the clause instead.
//
// Methods record the first usage error and keep returning the query, so a
// chain can be written without checks. The error is reported by SQL,
// Compile and Execute.
type Query struct {
	connection    Connection
	dialect       Dialect
	types         *TypeRegistry
	typeMap       *TypeMap
	binder        *ValueBinder
	statementType StatementType

	selectFields []Aliased
	distinct     bool
	distinctOn   []any
	from         []Aliased
	joins        []join
	where        *QueryExpression
	group        []any
	having       *QueryExpression
	order        []any
	limit        *int64
	offset       *int64
	unions       []union
	epilog       Expression

	insertTable   string
	insertColumns []string
	insertTypes   Types
	valueRows     []map[string]any
	valueQuery    *Query

	updateTable any
	assignments []Expression

	decorators []ResultDecorator
	cacheKey   string
	err        error
}

func NewQuery(connection Connection, options ...QueryOption) *Query {
	q := &Query{
		connection:    connection,
		types:         DefaultTypes(),
		typeMap:       NewTypeMap(nil),
		binder:        NewValueBinder(),
		statementType: StatementSelect,
	}

	if connection != nil {
		q.dialect = connection.Dialect()
	}

	for _, option := range options {
		option(q)
	}

	if q.dialect == nil {
		q.dialect = DefaultDialect()
	}

	if q.typeMap == nil {
		q.typeMap = NewTypeMap(nil)
	}

	if q.types == nil {
		q.types = DefaultTypes()
	}

	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}

	return q
}

// Err returns the first usage error recorded on the query.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) Type() StatementType {
	return q.statementType
}

func (q *Query) TypeMap() *TypeMap {
	return q.typeMap
}

func (q *Query) ValueBinder() *ValueBinder {
	return q.binder
}

func (q *Query) Connection() Connection {
	return q.connection
}

func (q *Query) Dialect() Dialect {
	return q.dialect
}

// NewExpr returns an AND expression that resolves types through the query's
// type map.
func (q *Query) NewExpr(conditions ...any) *QueryExpression {
	exp := &QueryExpression{
		conjunction: ConjunctionAnd,
		typeMap:     q.typeMap,
		query:       q,
	}

	for _, condition := range conditions {
		exp.Add(condition)
	}

	return exp
}

func (q *Query) Func() FunctionBuilder {
	return Functions()
}

func (q *Query) Identifier(name string) *IdentifierExpression {
	return Identifier(name)
}

func (q *Query) Select(fields ...any) *Query {
	if q.statementType != StatementSelect {
		return q.fail(usageError("Select", "query is already a %s statement", q.statementType))
	}

	for _, field := range fields {
		if err := q.addSelect(field); err != nil {
			return q.fail(err)
		}
	}

	return q
}

func (q *Query) ReplaceSelect(fields ...any) *Query {
	q.selectFields = nil

	return q.Select(fields...)
}

func (q *Query) addSelect(field any) error {
	switch typed := field.(type) {
	case nil:
	case string:
		if strings.TrimSpace(typed) == "" {
			return usageError("Select", "empty field")
		}

		q.selectFields = append(q.selectFields, Aliased{Value: typed})
	case Aliased:
		q.selectFields = append(q.selectFields, typed)
	case Fields:
		q.selectFields = append(q.selectFields, typed...)
	case []Aliased:
		q.selectFields = append(q.selectFields, typed...)
	case Expression:
		q.selectFields = append(q.selectFields, Aliased{Value: typed})
	case map[string]any:
		for _, alias := range sortedKeys(typed) {
			q.selectFields = append(q.selectFields, Aliased{Value: typed[alias], Alias: alias})
		}
	case map[string]string:
		aliases := make([]string, 0, len(typed))
		for alias := range typed {
			aliases = append(aliases, alias)
		}

		sort.Strings(aliases)

		for _, alias := range aliases {
			q.selectFields = append(q.selectFields, Aliased{Value: typed[alias], Alias: alias})
		}
	case []string:
		for _, name := range typed {
			if err := q.addSelect(name); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range typed {
			if err := q.addSelect(item); err != nil {
				return err
			}
		}
	case SelectFunc:
		return q.addSelect(typed(q))
	case func(q *Query) []any:
		return q.addSelect(typed(q))
	default:
		return usageError("Select", "unsupported field %T", field)
	}

	return nil
}

// Distinct without arguments renders SELECT DISTINCT. With fields it
// renders DISTINCT ON, or GROUP BY where the dialect has no DISTINCT ON.
func (q *Query) Distinct(on ...any) *Query {
	q.distinct = true
	for _, field := range on {
		switch typed := field.(type) {
		case []string:
			for _, name := range typed {
				q.distinctOn = append(q.distinctOn, name)
			}
		case string, Expression:
			q.distinctOn = append(q.distinctOn, typed)
		default:
			return q.fail(usageError("Distinct", "unsupported field %T", field))
		}
	}

	return q
}

func (q *Query) ReplaceDistinct(on ...any) *Query {
	q.distinctOn = nil

	return q.Distinct(on...)
}

func (q *Query) ClearDistinct() *Query {
	q.distinct = false
	q.distinctOn = nil

	return q
}

func (q *Query) From(tables ...any) *Query {
	for _, table := range tables {
		switch typed := table.(type) {
		case nil:
		case string:
			if strings.TrimSpace(typed) == "" {
				return q.fail(usageError("From", "empty table name"))
			}

			q.from = append(q.from, Aliased{Value: typed})
		case []string:
			for _, name := range typed {
				q.From(name)
			}
		case Aliased:
			q.from = append(q.from, typed)
		case map[string]any:
			for _, alias := range sortedKeys(typed) {
				q.from = append(q.from, Aliased{Value: typed[alias], Alias: alias})
			}
		case map[string]string:
			aliases := make([]string, 0, len(typed))
			for alias := range typed {
				aliases = append(aliases, alias)
			}

			sort.Strings(aliases)

			for _, alias := range aliases {
				q.from = append(q.from, Aliased{Value: typed[alias], Alias: alias})
			}
		case Expression:
			q.from = append(q.from, Aliased{Value: typed})
		default:
			return q.fail(usageError("From", "unsupported table %T", table))
		}
	}

	return q
}

func (q *Query) ReplaceFrom(tables ...any) *Query {
	q.from = nil

	return q.From(tables...)
}

// Join adds joins. A join whose alias is already in use replaces the
// existing one in place.
func (q *Query) Join(joins ...JoinClause) *Query {
	for _, clause := range joins {
		table, alias := clause.Table, clause.Alias
		if aliased, ok := table.(Aliased); ok {
			table = aliased.Value
			if alias == "" {
				alias = aliased.Alias
			}
		}

		switch typed := table.(type) {
		case string:
			if strings.TrimSpace(typed) == "" {
				return q.fail(usageError("Join", "empty table name"))
			}
		case Expression:
		default:
			return q.fail(usageError("Join", "unsupported table %T", table))
		}

		typ := strings.ToUpper(strings.TrimSpace(clause.Type))
		if typ == "" {
			typ = JoinInner
		}

		conditions, ok := clause.Conditions.(*QueryExpression)
		if !ok || conditions == nil {
			conditions = q.NewExpr(clause.Conditions)
		}

		entry := join{
			table:      table,
			alias:      alias,
			typ:        typ,
			conditions: conditions,
		}

		if i := q.joinIndex(alias); i >= 0 {
			q.joins[i] = entry
			continue
		}

		q.joins = append(q.joins, entry)
	}

	return q
}

func (q *Query) ReplaceJoin(joins ...JoinClause) *Query {
	q.joins = nil

	return q.Join(joins...)
}

func (q *Query) joinIndex(alias string) int {
	if alias == "" {
		return -1
	}

	for i, existing := range q.joins {
		if existing.alias == alias {
			return i
		}
	}

	return -1
}

// InnerJoin joins table, which may be a name, a *Query or As(table, alias).
func (q *Query) InnerJoin(table any, conditions any, types ...Types) *Query {
	return q.typedJoin(JoinInner, table, conditions, types)
}

func (q *Query) LeftJoin(table any, conditions any, types ...Types) *Query {
	return q.typedJoin(JoinLeft, table, conditions, types)
}

func (q *Query) RightJoin(table any, conditions any, types ...Types) *Query {
	return q.typedJoin(JoinRight, table, conditions, types)
}

func (q *Query) typedJoin(typ string, table any, conditions any, types []Types) *Query {
	return q.Join(JoinClause{
		Table:      table,
		Type:       typ,
		Conditions: q.NewExpr().Add(conditions, types...),
	})
}

func (q *Query) RemoveJoin(alias string) *Query {
	if i := q.joinIndex(alias); i >= 0 {
		q.joins = append(q.joins[:i], q.joins[i+1:]...)
	}

	return q
}

// Where adds conditions to the WHERE clause, joined with AND.
func (q *Query) Where(conditions any, types ...Types) *Query {
	q.where = q.conjugate(q.where, conditions, ConjunctionAnd, types)

	return q
}

func (q *Query) ReplaceWhere(conditions any, types ...Types) *Query {
	q.where = nil

	return q.Where(conditions, types...)
}

func (q *Query) AndWhere(conditions any, types ...Types) *Query {
	return q.Where(conditions, types...)
}

// OrWhere combines the existing WHERE clause and conditions with OR.
func (q *Query) OrWhere(conditions any, types ...Types) *Query {
	q.where = q.conjugate(q.where, conditions, ConjunctionOr, types)

	return q
}

func (q *Query) WhereNull(fields ...string) *Query {
	exp := q.NewExpr()
	for _, field := range fields {
		exp.IsNull(field)
	}

	return q.Where(exp)
}

func (q *Query) WhereNotNull(fields ...string) *Query {
	exp := q.NewExpr()
	for _, field := range fields {
		exp.IsNotNull(field)
	}

	return q.Where(exp)
}

// WhereInList adds field IN (values). An empty list is a compile error
// unless allowEmpty is set, in which case the condition matches nothing.
func (q *Query) WhereInList(field string, values any, allowEmpty bool, typ ...string) *Query {
	if list, isList := asList(values); allowEmpty && isList && len(list) == 0 {
		return q.Where("1 = 0")
	}

	return q.Where(q.NewExpr().In(field, values, typ...))
}

func (q *Query) WhereNotInList(field string, values any, allowEmpty bool, typ ...string) *Query {
	if list, isList := asList(values); allowEmpty && isList && len(list) == 0 {
		return q.Where("1 = 1")
	}

	return q.Where(q.NewExpr().NotIn(field, values, typ...))
}

func (q *Query) Having(conditions any, types ...Types) *Query {
	q.having = q.conjugate(q.having, conditions, ConjunctionAnd, types)

	return q
}

func (q *Query) ReplaceHaving(conditions any, types ...Types) *Query {
	q.having = nil

	return q.Having(conditions, types...)
}

func (q *Query) AndHaving(conditions any, types ...Types) *Query {
	return q.Having(conditions, types...)
}

func (q *Query) OrHaving(conditions any, types ...Types) *Query {
	q.having = q.conjugate(q.having, conditions, ConjunctionOr, types)

	return q
}

// conjugate adds conditions to root when the conjunctions match, otherwise
// it builds a new root holding the old root and the new conditions.
func (q *Query) conjugate(root *QueryExpression, conditions any, conjunction string, types []Types) *QueryExpression {
	if root == nil {
		root = q.NewExpr()
	}

	if isEmptyCondition(conditions) {
		return root
	}

	if fn, ok := conditions.(ExpressionFunc); ok {
		conditions = fn(q.NewExpr(), q)
	} else if fn, ok := conditions.(func(exp *QueryExpression, q *Query) Expression); ok {
		conditions = fn(q.NewExpr(), q)
	}

	if root.Conjunction() == conjunction {
		return root.Add(conditions, types...)
	}

	return q.NewExpr().SetConjunction(conjunction).Add([]any{root, conditions}, types...)
}

func (q *Query) Group(fields ...any) *Query {
	for _, field := range fields {
		switch typed := field.(type) {
		case nil:
		case []string:
			for _, name := range typed {
				q.group = append(q.group, name)
			}
		case string, Expression:
			q.group = append(q.group, typed)
		default:
			return q.fail(usageError("Group", "unsupported field %T", field))
		}
	}

	return q
}

func (q *Query) ReplaceGroup(fields ...any) *Query {
	q.group = nil

	return q.Group(fields...)
}

// Order adds ORDER BY terms in call order. Strings are used verbatim, so
// "title DESC" works. map[string]string maps fields to ASC or DESC and is
// applied in sorted key order; use Pairs for a caller-defined order.
func (q *Query) Order(fields ...any) *Query {
	for _, field := range fields {
		switch typed := field.(type) {
		case nil:
		case string:
			if strings.TrimSpace(typed) == "" {
				return q.fail(usageError("Order", "empty field"))
			}

			q.order = append(q.order, typed)
		case []string:
			for _, name := range typed {
				q.Order(name)
			}
		case map[string]string:
			keys := make([]string, 0, len(typed))
			for key := range typed {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				if !q.orderDirection(key, typed[key]) {
					return q
				}
			}
		case OrderedConditions:
			q.Order([]Pair(typed))
		case []Pair:
			for _, pair := range typed {
				direction, ok := pair.Value.(string)
				if !ok && pair.Value != nil {
					return q.fail(usageError("Order", "invalid direction %v for %s", pair.Value, pair.Key))
				}

				if !q.orderDirection(pair.Key, direction) {
					return q
				}
			}
		case Expression:
			q.order = append(q.order, typed)
		default:
			return q.fail(usageError("Order", "unsupported field %T", field))
		}
	}

	return q
}

func (q *Query) orderDirection(field, direction string) bool {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "", "ASC":
		q.order = append(q.order, Asc(field))
	case "DESC":
		q.order = append(q.order, Desc(field))
	default:
		q.fail(usageError("Order", "invalid direction %q for %s", direction, field))
		return false
	}

	return true
}

func (q *Query) ReplaceOrder(fields ...any) *Query {
	q.order = nil

	return q.Order(fields...)
}

func (q *Query) OrderAsc(field any) *Query {
	return q.Order(Asc(field))
}

func (q *Query) OrderDesc(field any) *Query {
	return q.Order(Desc(field))
}

func (q *Query) Limit(limit int) *Query {
	if limit < 0 {
		return q.fail(usageError("Limit", "negative limit %d", limit))
	}

	value := int64(limit)
	q.limit = &value

	return q
}

func (q *Query) ClearLimit() *Query {
	q.limit = nil

	return q
}

func (q *Query) Offset(offset int) *Query {
	if offset < 0 {
		return q.fail(usageError("Offset", "negative offset %d", offset))
	}

	value := int64(offset)
	q.offset = &value

	return q
}

func (q *Query) ClearOffset() *Query {
	q.offset = nil

	return q
}

// Page sets the offset for a 1-based page. A limit of 0 keeps the limit
// already set on the query.
func (q *Query) Page(page int, limit int) *Query {
	if page < 1 {
		return q.fail(usageError("Page", "pages start at 1, got %d", page))
	}

	if limit > 0 {
		q.Limit(limit)
	}

	if q.limit == nil {
		return q.fail(usageError("Page", "a limit is required to page"))
	}

	return q.Offset(int((int64(page) - 1) * *q.limit))
}

func (q *Query) Union(other *Query) *Query {
	return q.addUnion(other, false)
}

func (q *Query) UnionAll(other *Query) *Query {
	return q.addUnion(other, true)
}

// ReplaceUnion replaces every union branch with other. A nil query clears
// the unions.
func (q *Query) ReplaceUnion(other *Query, all bool) *Query {
	q.unions = nil
	if other == nil {
		return q
	}

	return q.addUnion(other, all)
}

func (q *Query) addUnion(other *Query, all bool) *Query {
	if other == nil {
		return q.fail(usageError("Union", "nil query"))
	}

	if other == q {
		return q.fail(usageError("Union", "a query cannot be unioned with itself"))
	}

	q.unions = append(q.unions, union{query: other, all: all})

	return q
}

// Epilog sets SQL appended after every other clause, such as RETURNING id.
// A nil epilog clears it.
func (q *Query) Epilog(epilog any) *Query {
	switch typed := epilog.(type) {
	case nil:
		q.epilog = nil
	case string:
		q.epilog = Raw(typed)
	case Expression:
		q.epilog = typed
	default:
		return q.fail(usageError("Epilog", "unsupported epilog %T", epilog))
	}

	return q
}

func (q *Query) switchType(method string, statementType StatementType) bool {
	if q.statementType != StatementSelect && q.statementType != statementType {
		q.fail(usageError(method, "query is already a %s statement", q.statementType))
		return false
	}

	if q.statementType == StatementSelect && len(q.selectFields) > 0 {
		q.fail(usageError(method, "query already selects fields"))
		return false
	}

	q.statementType = statementType

	return true
}

// Insert switches the query to an INSERT into table with the given columns.
func (q *Query) Insert(table string, columns []string, types ...Types) *Query {
	if !q.switchType("Insert", StatementInsert) {
		return q
	}

	if strings.TrimSpace(table) == "" {
		return q.fail(usageError("Insert", "empty table name"))
	}

	if len(columns) == 0 {
		return q.fail(usageError("Insert", "at least one column is required"))
	}

	q.insertTable = table
	q.insertColumns = append([]string{}, columns...)
	q.insertTypes = mergeTypes(types)

	return q
}

// Values adds a row (a map of column to value) or sets a *Query whose rows
// are inserted. Rows and a query cannot be mixed.
func (q *Query) Values(values any) *Query {
	if q.statementType != StatementInsert || len(q.insertColumns) == 0 {
		return q.fail(usageError("Values", "Insert must be called before Values"))
	}

	switch typed := values.(type) {
	case *Query:
		if len(q.valueRows) > 0 {
			return q.fail(usageError("Values", "cannot mix row values with a query"))
		}

		if q.valueQuery != nil {
			return q.fail(usageError("Values", "a query has already been set as values"))
		}

		q.valueQuery = typed
	case Conditions:
		return q.Values(map[string]any(typed))
	case map[string]any:
		if q.valueQuery != nil {
			return q.fail(usageError("Values", "cannot mix row values with a query"))
		}

		row := make(map[string]any, len(typed))
		for column, value := range typed {
			row[column] = value
		}

		q.valueRows = append(q.valueRows, row)
	case []map[string]any:
		for _, row := range typed {
			q.Values(row)
		}
	default:
		return q.fail(usageError("Values", "unsupported values %T", values))
	}

	return q
}

func (q *Query) Update(table any) *Query {
	if !q.switchType("Update", StatementUpdate) {
		return q
	}

	switch typed := table.(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return q.fail(usageError("Update", "empty table name"))
		}
	case Expression:
	default:
		return q.fail(usageError("Update", "unsupported table %T", table))
	}

	q.updateTable = table

	return q
}

func (q *Query) Set(field string, value any, typ ...string) *Query {
	if q.statementType != StatementUpdate {
		return q.fail(usageError("Set", "Update must be called before Set"))
	}

	if strings.TrimSpace(field) == "" {
		return q.fail(usageError("Set", "empty field"))
	}

	resolved := ""
	if len(typ) > 0 {
		resolved = typ[0]
	} else {
		resolved = q.typeMap.Type(field)
	}

	q.assignments = append(q.assignments, &assignment{field: field, value: value, typ: resolved})

	return q
}

// SetValues assigns every field of values, in sorted field order.
func (q *Query) SetValues(values Conditions, types ...Types) *Query {
	fieldTypes := mergeTypes(types)
	for _, field := range sortedKeys(values) {
		if typ, found := fieldTypes[field]; found {
			q.Set(field, values[field], typ)
			continue
		}

		q.Set(field, values[field])
	}

	return q
}

// SetExpression adds a computed assignment, such as Raw("title = author_id").
func (q *Query) SetExpression(expression Expression) *Query {
	if q.statementType != StatementUpdate {
		return q.fail(usageError("SetExpression", "Update must be called before SetExpression"))
	}

	if expression == nil {
		return q.fail(usageError("SetExpression", "nil expression"))
	}

	q.assignments = append(q.assignments, expression)

	return q
}

// Delete switches the query to a DELETE. Tables may be given here or with
// From.
func (q *Query) Delete(tables ...string) *Query {
	if !q.switchType("Delete", StatementDelete) {
		return q
	}

	for _, table := range tables {
		q.From(table)
	}

	return q
}

// DecorateResults appends a row decorator. A nil decorator is ignored.
func (q *Query) DecorateResults(decorator ResultDecorator) *Query {
	if decorator != nil {
		q.decorators = append(q.decorators, decorator)
	}

	return q
}

// ReplaceDecorators drops every decorator and installs decorator, or
// nothing when it is nil.
func (q *Query) ReplaceDecorators(decorator ResultDecorator) *Query {
	q.decorators = nil

	return q.DecorateResults(decorator)
}

// Cache stores results under key in the connection's result cache. An empty
// key disables caching.
func (q *Query) Cache(key string) *Query {
	q.cacheKey = key

	return q
}

func (q *Query) CacheKey() string {
	return q.cacheKey
}

// Clause returns the current state of a clause by name.
func (q *Query) Clause(name string) (any, error) {
	switch name {
	case "select":
		return append([]Aliased{}, q.selectFields...), nil
	case "distinct":
		if len(q.distinctOn) > 0 {
			return append([]any{}, q.distinctOn...), nil
		}

		return q.distinct, nil
	case "from":
		return append([]Aliased{}, q.from...), nil
	case "join":
		joins := make([]JoinClause, 0, len(q.joins))
		for _, entry := range q.joins {
			joins = append(joins, JoinClause{
				Table:      entry.table,
				Alias:      entry.alias,
				Type:       entry.typ,
				Conditions: entry.conditions,
			})
		}

		return joins, nil
	case "where":
		return q.where, nil
	case "group":
		return append([]any{}, q.group...), nil
	case "having":
		return q.having, nil
	case "order":
		return append([]any{}, q.order...), nil
	case "limit":
		return q.limit, nil
	case "offset":
		return q.offset, nil
	case "union":
		queries := make([]*Query, 0, len(q.unions))
		for _, entry := range q.unions {
			queries = append(queries, entry.query)
		}

		return queries, nil
	case "insert":
		return append([]string{}, q.insertColumns...), nil
	case "values":
		if q.valueQuery != nil {
			return q.valueQuery, nil
		}

		return append([]map[string]any{}, q.valueRows...), nil
	case "update":
		return q.updateTable, nil
	case "set":
		return append([]Expression{}, q.assignments...), nil
	case "epilog":
		return q.epilog, nil
	}

	return nil, usageError("Clause", "unknown clause %q", name)
}

// Clone returns a deep copy of the query with a fresh binder. Embedded
// queries are cloned too.
func (q *Query) Clone() *Query {
	clone := *q
	clone.binder = NewValueBinder()
	clone.typeMap = q.typeMap.Clone()

	clone.selectFields = cloneAliased(q.selectFields)
	clone.distinctOn = cloneAny(q.distinctOn)
	clone.from = cloneAliased(q.from)
	clone.group = cloneAny(q.group)
	clone.order = cloneAny(q.order)
	clone.insertColumns = append([]string(nil), q.insertColumns...)
	clone.assignments = nil
	for _, expression := range q.assignments {
		clone.assignments = append(clone.assignments, cloneExpression(expression))
	}

	clone.decorators = append([]ResultDecorator(nil), q.decorators...)

	if q.where != nil {
		clone.where = q.where.Clone()
		clone.where.retarget(&clone)
	}

	if q.having != nil {
		clone.having = q.having.Clone()
		clone.having.retarget(&clone)
	}

	clone.joins = nil
	for _, entry := range q.joins {
		entry.table = cloneValue(entry.table)
		entry.conditions = entry.conditions.Clone()
		entry.conditions.retarget(&clone)
		clone.joins = append(clone.joins, entry)
	}

	clone.unions = nil
	for _, entry := range q.unions {
		clone.unions = append(clone.unions, union{query: entry.query.Clone(), all: entry.all})
	}

	if q.valueQuery != nil {
		clone.valueQuery = q.valueQuery.Clone()
	}

	clone.valueRows = nil
	for _, row := range q.valueRows {
		copied := make(map[string]any, len(row))
		for column, value := range row {
			copied[column] = value
		}

		clone.valueRows = append(clone.valueRows, copied)
	}

	if q.limit != nil {
		limit := *q.limit
		clone.limit = &limit
	}

	if q.offset != nil {
		offset := *q.offset
		clone.offset = &offset
	}

	return &clone
}

// retarget points the expression tree at a new owning query and type map.
func (exp *QueryExpression) retarget(q *Query) {
	exp.query = q
	exp.typeMap = q.typeMap
	for _, part := range exp.parts {
		if child, ok := part.(*QueryExpression); ok {
			child.retarget(q)
		}
	}
}

func cloneAliased(fields []Aliased) []Aliased {
	if fields == nil {
		return nil
	}

	clone := make([]Aliased, 0, len(fields))
	for _, field := range fields {
		clone = append(clone, Aliased{Value: cloneValue(field.Value), Alias: field.Alias})
	}

	return clone
}

func cloneAny(values []any) []any {
	if values == nil {
		return nil
	}

	clone := make([]any, 0, len(values))
	for _, value := range values {
		clone = append(clone, cloneValue(value))
	}

	return clone
}

func cloneValue(value any) any {
	if expression, ok := value.(Expression); ok {
		return cloneExpression(expression)
	}

	return value
}

// SQL renders the query. A nil binder resets and uses the query's own
// binder, so rendering an unchanged query twice gives the same result. A
// non-nil binder accumulates, which is how embedded queries share the
// placeholders of the statement they are part of.
func (q *Query) SQL(binder *ValueBinder) (string, error) {
	if q.err != nil {
		return "", q.err
	}

	if binder == nil {
		binder = q.binder
		binder.Reset()
		binder.setDialect(q.dialect)
	}

	return newCompiler(binder.Dialect()).compile(q, binder)
}

// Compile renders the query with its own binder and converts every bound
// value to its driver value.
func (q *Query) Compile() (CompiledStatement, error) {
	return q.compile(nil)
}

// CompileWith renders the query into binder without resetting it.
func (q *Query) CompileWith(binder *ValueBinder) (CompiledStatement, error) {
	if binder == nil {
		binder = NewValueBinder()
	}

	binder.setDialect(q.dialect)

	return q.compile(binder)
}

func (q *Query) compile(binder *ValueBinder) (CompiledStatement, error) {
	sql, err := q.SQL(binder)
	if err != nil {
		return CompiledStatement{}, err
	}

	if binder == nil {
		binder = q.binder
	}

	bindings := binder.Bindings()
	parameters := make(map[string]any, len(bindings))
	for _, binding := range bindings {
		value, err := q.types.ToDriver(binding.Type, binding.Value)
		if err != nil {
			return CompiledStatement{}, fmt.Errorf("binding %s: %w", binding.Placeholder, err)
		}

		parameters[binding.Placeholder] = value
	}

	return CompiledStatement{
		Type:       q.statementType,
		SQL:        sql,
		Bindings:   bindings,
		Parameters: parameters,
		CacheKey:   q.cacheKey,
	}, nil
}

// Execute compiles the query and runs it on the query's connection. Rows
// are type cast through the type map and then passed through the result
// decorators.
func (q *Query) Execute(ctx context.Context) (StatementResult, error) {
	if q.err != nil {
		return nil, q.err
	}

	if q.connection == nil {
		return nil, ErrNoConnection
	}

	statement, err := q.Compile()
	if err != nil {
		return nil, err
	}

	result, err := q.connection.Run(ctx, statement)
	if err != nil {
		return nil, err
	}

	result, err = castRows(result, q.types, q.resultTypes())
	if err != nil {
		return nil, err
	}

	return decorate(result, q.decorators), nil
}

// resultTypes maps result columns to logical types: the type map first,
// then select aliases of typed functions.
func (q *Query) resultTypes() map[string]string {
	types := map[string]string{}
	for field, typ := range q.typeMap.Defaults() {
		types[field] = typ
	}

	for field, typ := range q.typeMap.Types() {
		types[field] = typ
	}

	for _, field := range q.selectFields {
		name := field.Alias
		if name == "" {
			continue
		}

		switch typed := field.Value.(type) {
		case *FunctionExpression:
			if typed.ReturnType() != "" {
				types[name] = typed.ReturnType()
			}
		case string:
			if typ := q.typeMap.Type(typed); typ != "" {
				types[name] = typ
			}
		}
	}

	return types
}

func sortedKeys[T any](values map[string]T) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
