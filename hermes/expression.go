package hermes

import (
	"reflect"
	"strings"
)

// Expression is any node that renders itself to SQL, binding its values
// on the given binder.
type Expression interface {
	SQL(binder *ValueBinder) (string, error)
}

// RawExpression is emitted verbatim and never binds anything.
type RawExpression string

func Raw(sql string) RawExpression {
	return RawExpression(sql)
}

// Literal marks a function argument or value that must be rendered as-is,
// such as a column name.
func Literal(sql string) RawExpression {
	return RawExpression(sql)
}

func (raw RawExpression) SQL(binder *ValueBinder) (string, error) {
	return string(raw), nil
}

type IdentifierExpression struct {
	name string
}

func Identifier(name string) *IdentifierExpression {
	return &IdentifierExpression{name: name}
}

func (identifier *IdentifierExpression) Name() string {
	return identifier.name
}

func (identifier *IdentifierExpression) SQL(binder *ValueBinder) (string, error) {
	name := strings.TrimSpace(identifier.name)
	if name == "" {
		return "", compilationError("", "empty identifier")
	}

	return name, nil
}

// ValueExpression binds a single value, optionally typed.
type ValueExpression struct {
	value any
	typ   string
}

func Value(value any, typ string) *ValueExpression {
	return &ValueExpression{value: value, typ: typ}
}

func (expression *ValueExpression) SQL(binder *ValueBinder) (string, error) {
	return compileValue(binder, expression.value, expression.typ)
}

// Aliased pairs a field, table or subquery with the alias it is known by.
type Aliased struct {
	Value any
	Alias string
}

func As(value any, alias string) Aliased {
	return Aliased{Value: value, Alias: alias}
}

// Fields is an ordered alias list for Select.
type Fields []Aliased

type OrderByExpression struct {
	field     any
	direction string
}

func Asc(field any) *OrderByExpression {
	return &OrderByExpression{field: field, direction: "ASC"}
}

func Desc(field any) *OrderByExpression {
	return &OrderByExpression{field: field, direction: "DESC"}
}

func (order *OrderByExpression) SQL(binder *ValueBinder) (string, error) {
	field, err := compileField(binder, order.field)
	if err != nil {
		return "", err
	}

	return field + " " + order.direction, nil
}

type BetweenExpression struct {
	field any
	from  any
	to    any
	typ   string
}

func Between(field any, from any, to any, typ string) *BetweenExpression {
	return &BetweenExpression{field: field, from: from, to: to, typ: typ}
}

func (between *BetweenExpression) SQL(binder *ValueBinder) (string, error) {
	field, err := compileField(binder, between.field)
	if err != nil {
		return "", err
	}

	from, err := compileValue(binder, between.from, between.typ)
	if err != nil {
		return "", err
	}

	to, err := compileValue(binder, between.to, between.typ)
	if err != nil {
		return "", err
	}

	return field + " BETWEEN " + from + " AND " + to, nil
}

// UnaryExpression prefixes a single operand, as in NOT (...).
type UnaryExpression struct {
	operator string
	operand  Expression
}

func (unary *UnaryExpression) SQL(binder *ValueBinder) (string, error) {
	operand, err := compileExpression(binder, unary.operand)
	if err != nil {
		return "", err
	}

	if operand == "" {
		return "", nil
	}

	return unary.operator + " (" + unwrap(operand) + ")", nil
}

type invalidExpression struct {
	err error
}

func (invalid invalidExpression) SQL(binder *ValueBinder) (string, error) {
	return "", invalid.err
}

// compileExpression renders expression, parenthesizing embedded queries.
func compileExpression(binder *ValueBinder, expression Expression) (string, error) {
	if expression == nil {
		return "", nil
	}

	if query, ok := expression.(*Query); ok {
		sql, err := query.SQL(binder)
		if err != nil {
			return "", err
		}

		return "(" + sql + ")", nil
	}

	return expression.SQL(binder)
}

// compileField renders a field reference: strings are column names or raw
// SQL, anything else must be an expression.
func compileField(binder *ValueBinder, field any) (string, error) {
	switch typed := field.(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return "", compilationError("", "empty field reference")
		}

		return typed, nil
	case Expression:
		return compileExpression(binder, typed)
	case nil:
		return "", compilationError("", "missing field reference")
	}

	return "", compilationError("", "unsupported field reference %T", field)
}

func compileValue(binder *ValueBinder, value any, typ string) (string, error) {
	if expression, ok := value.(Expression); ok {
		return compileExpression(binder, expression)
	}

	return binder.BindValue(value, baseType(typ)), nil
}

func fieldName(field any) string {
	switch typed := field.(type) {
	case string:
		return typed
	case *IdentifierExpression:
		return typed.name
	}

	return ""
}

// asList reports whether value is a list of values, excluding []byte.
func asList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}

	if _, ok := value.([]byte); ok {
		return nil, false
	}

	if list, ok := value.([]any); ok {
		return list, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	// byte arrays such as uuid.UUID are single values
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	list := make([]any, 0, rv.Len())
	for i := range rv.Len() {
		list = append(list, rv.Index(i).Interface())
	}

	return list, true
}

// unwrap drops one pair of parentheses when they enclose the whole string.
func unwrap(sql string) string {
	if !strings.HasPrefix(sql, "(") || !strings.HasSuffix(sql, ")") {
		return sql
	}

	depth := 0
	for i, r := range sql {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(sql)-1 {
				return sql
			}
		}
	}

	return sql[1 : len(sql)-1]
}
