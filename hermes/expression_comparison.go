package hermes

import (
	"fmt"
	"strings"
)

var comparisonOperators = map[string]bool{
	"=":         true,
	"!=":        true,
	"<>":        true,
	">":         true,
	">=":        true,
	"<":         true,
	"<=":        true,
	"LIKE":      true,
	"NOT LIKE":  true,
	"ILIKE":     true,
	"NOT ILIKE": true,
	"IN":        true,
	"NOT IN":    true,
	"IS":        true,
	"IS NOT":    true,
}

// ComparisonExpression is a normalized field/operator/value triple.
type ComparisonExpression struct {
	field    any
	operator string
	value    any
	typ      string
	err      error
}

// NewComparison normalizes the operator against the value: lists turn = and
// != into IN and NOT IN, nil turns them into IS and IS NOT.
func NewComparison(field any, value any, typ string, operator string) *ComparisonExpression {
	comparison := &ComparisonExpression{
		field: field,
		value: value,
		typ:   baseType(typ),
	}

	operator = strings.ToUpper(strings.Join(strings.Fields(operator), " "))
	if operator == "" {
		operator = "="
	}

	list, isList := asList(value)
	_, isExpression := value.(Expression)

	switch {
	case value == nil && (operator == "=" || operator == "IS"):
		operator = "IS"
	case value == nil && (operator == "!=" || operator == "<>" || operator == "IS NOT"):
		operator = "IS NOT"
	case value == nil:
		comparison.err = fmt.Errorf("operator %s cannot compare against NULL", operator)
	case isList && operator == "=":
		operator = "IN"
	case isList && (operator == "!=" || operator == "<>"):
		operator = "NOT IN"
	case !isList && !isExpression && (operator == "IN" || operator == "NOT IN"):
		comparison.value = []any{value}
	}

	if isList {
		comparison.value = list
	}

	if !comparisonOperators[operator] {
		comparison.err = fmt.Errorf("unsupported operator %q", operator)
	}

	if (operator == "IS" || operator == "IS NOT") && value != nil && !isExpression {
		comparison.err = fmt.Errorf("operator %s only compares against NULL or expressions", operator)
	}

	comparison.operator = operator

	return comparison
}

func (comparison *ComparisonExpression) Field() any {
	return comparison.field
}

func (comparison *ComparisonExpression) Operator() string {
	return comparison.operator
}

func (comparison *ComparisonExpression) Value() any {
	return comparison.value
}

func (comparison *ComparisonExpression) Type() string {
	return comparison.typ
}

func (comparison *ComparisonExpression) SQL(binder *ValueBinder) (string, error) {
	name := fieldName(comparison.field)
	if comparison.err != nil {
		return "", &CompilationError{Field: name, Err: comparison.err}
	}

	field, err := compileField(binder, comparison.field)
	if err != nil {
		return "", err
	}

	if comparison.value == nil {
		return fmt.Sprintf("%s %s NULL", field, comparison.operator), nil
	}

	if comparison.operator == "IN" || comparison.operator == "NOT IN" {
		values, err := comparison.compileList(binder, name)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s %s %s", field, comparison.operator, values), nil
	}

	value, err := compileValue(binder, comparison.value, comparison.typ)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s %s %s", field, comparison.operator, value), nil
}

func (comparison *ComparisonExpression) compileList(binder *ValueBinder, name string) (string, error) {
	if expression, ok := comparison.value.(Expression); ok {
		sql, err := compileExpression(binder, expression)
		if err != nil {
			return "", err
		}

		if _, isQuery := expression.(*Query); isQuery {
			return sql, nil
		}

		return "(" + sql + ")", nil
	}

	list, _ := asList(comparison.value)
	if len(list) == 0 {
		return "", compilationError(name, "impossible to generate condition with empty list of values")
	}

	placeholders := make([]string, 0, len(list))
	for _, item := range list {
		placeholder, err := compileValue(binder, item, comparison.typ)
		if err != nil {
			return "", err
		}

		placeholders = append(placeholders, placeholder)
	}

	return "(" + strings.Join(placeholders, ", ") + ")", nil
}

func (comparison *ComparisonExpression) clone() *ComparisonExpression {
	clone := *comparison
	if list, ok := comparison.value.([]any); ok {
		clone.value = append([]any{}, list...)
	}

	if query, ok := comparison.value.(*Query); ok {
		clone.value = query.Clone()
	}

	return &clone
}
