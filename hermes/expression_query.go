package hermes

import (
	"sort"
	"strings"
)

const (
	ConjunctionAnd = "AND"
	ConjunctionOr  = "OR"
)

// Conditions maps "field operator" keys to values. Keys are added in sorted
// order; use Pairs when the order matters.
type Conditions map[string]any

// Pair is a single "field operator" key and its value.
type Pair struct {
	Key   string
	Value any
}

type OrderedConditions []Pair

func Cond(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// Pairs builds ordered conditions from alternating keys and values.
func Pairs(keysAndValues ...any) OrderedConditions {
	conditions := OrderedConditions{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, _ := keysAndValues[i].(string)
		conditions = append(conditions, Pair{Key: key, Value: keysAndValues[i+1]})
	}

	return conditions
}

// ExpressionFunc builds a nested condition. It receives a fresh child
// expression and the query it is being added to, which may be nil.
type ExpressionFunc func(exp *QueryExpression, q *Query) Expression

// QueryExpression joins its parts with a single conjunction.
type QueryExpression struct {
	conjunction string
	parts       []Expression
	typeMap     *TypeMap
	query       *Query
}

func NewExpr(conditions ...any) *QueryExpression {
	exp := &QueryExpression{conjunction: ConjunctionAnd}
	for _, condition := range conditions {
		exp.Add(condition)
	}

	return exp
}

func And(conditions ...any) *QueryExpression {
	return NewExpr(conditions...)
}

func Or(conditions ...any) *QueryExpression {
	return NewExpr(conditions...).SetConjunction(ConjunctionOr)
}

func Not(conditions any) *UnaryExpression {
	return &UnaryExpression{operator: "NOT", operand: NewExpr(conditions)}
}

func (exp *QueryExpression) child(conjunction string) *QueryExpression {
	return &QueryExpression{
		conjunction: conjunction,
		typeMap:     exp.typeMap,
		query:       exp.query,
	}
}

// Add normalizes conditions into parts of this expression.
func (exp *QueryExpression) Add(conditions any, types ...Types) *QueryExpression {
	fieldTypes := mergeTypes(types)

	switch typed := conditions.(type) {
	case nil:
	case string:
		if strings.TrimSpace(typed) != "" {
			exp.parts = append(exp.parts, Raw(typed))
		}
	case ExpressionFunc:
		exp.addFunc(typed)
	case func(exp *QueryExpression, q *Query) Expression:
		exp.addFunc(typed)
	case *QueryExpression:
		if typed != nil {
			exp.parts = append(exp.parts, typed)
		}
	case Expression:
		exp.parts = append(exp.parts, typed)
	case Conditions:
		exp.addConditions(typed, fieldTypes)
	case map[string]any:
		exp.addConditions(typed, fieldTypes)
	case Pair:
		exp.addPair(typed.Key, typed.Value, fieldTypes)
	case OrderedConditions:
		for _, pair := range typed {
			exp.addPair(pair.Key, pair.Value, fieldTypes)
		}
	case []Pair:
		for _, pair := range typed {
			exp.addPair(pair.Key, pair.Value, fieldTypes)
		}
	case []Expression:
		for _, part := range typed {
			exp.Add(part)
		}
	case []string:
		for _, part := range typed {
			exp.Add(part)
		}
	case []any:
		for _, part := range typed {
			switch part.(type) {
			case Conditions, map[string]any, OrderedConditions, []Pair:
				exp.parts = append(exp.parts, exp.child(ConjunctionAnd).Add(part, fieldTypes))
			default:
				exp.Add(part, fieldTypes)
			}
		}
	default:
		exp.parts = append(exp.parts, invalidExpression{
			err: compilationError("", "unsupported condition %T", conditions),
		})
	}

	return exp
}

func (exp *QueryExpression) addFunc(fn ExpressionFunc) {
	result := fn(exp.child(ConjunctionAnd), exp.query)
	if result != nil {
		exp.parts = append(exp.parts, result)
	}
}

func (exp *QueryExpression) addConditions(conditions map[string]any, types Types) {
	keys := make([]string, 0, len(conditions))
	for key := range conditions {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		exp.addPair(key, conditions[key], types)
	}
}

// addPair parses a "field operator" key into a comparison, or nests the
// value when the key is a boolean operator.
func (exp *QueryExpression) addPair(key string, value any, types Types) {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case ConjunctionAnd:
		exp.parts = append(exp.parts, exp.child(ConjunctionAnd).Add(value, types))
		return
	case ConjunctionOr:
		exp.parts = append(exp.parts, exp.child(ConjunctionOr).Add(value, types))
		return
	case "NOT":
		exp.parts = append(exp.parts, &UnaryExpression{
			operator: "NOT",
			operand:  exp.child(ConjunctionAnd).Add(value, types),
		})
		return
	}

	tokens := strings.Fields(key)
	if len(tokens) == 0 {
		exp.parts = append(exp.parts, invalidExpression{
			err: compilationError("", "condition key is empty"),
		})
		return
	}

	field := tokens[0]
	operator := strings.Join(tokens[1:], " ")

	exp.parts = append(exp.parts, NewComparison(field, value, exp.resolveType(field, types), operator))
}

func (exp *QueryExpression) resolveType(field string, types Types) string {
	if typ, found := types[field]; found {
		return typ
	}

	return exp.typeMap.Type(field)
}

func (exp *QueryExpression) compare(field any, value any, operator string, typ []string) *QueryExpression {
	resolved := ""
	if len(typ) > 0 {
		resolved = typ[0]
	} else {
		resolved = exp.resolveType(fieldName(field), nil)
	}

	exp.parts = append(exp.parts, NewComparison(field, value, resolved, operator))

	return exp
}

func (exp *QueryExpression) Eq(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "=", typ)
}

func (exp *QueryExpression) NotEq(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "!=", typ)
}

func (exp *QueryExpression) Gt(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, ">", typ)
}

func (exp *QueryExpression) Gte(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, ">=", typ)
}

func (exp *QueryExpression) Lt(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "<", typ)
}

func (exp *QueryExpression) Lte(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "<=", typ)
}

func (exp *QueryExpression) Like(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "LIKE", typ)
}

func (exp *QueryExpression) NotLike(field any, value any, typ ...string) *QueryExpression {
	return exp.compare(field, value, "NOT LIKE", typ)
}

func (exp *QueryExpression) In(field any, values any, typ ...string) *QueryExpression {
	return exp.compare(field, values, "IN", typ)
}

func (exp *QueryExpression) NotIn(field any, values any, typ ...string) *QueryExpression {
	return exp.compare(field, values, "NOT IN", typ)
}

func (exp *QueryExpression) IsNull(field any) *QueryExpression {
	return exp.compare(field, nil, "IS", nil)
}

func (exp *QueryExpression) IsNotNull(field any) *QueryExpression {
	return exp.compare(field, nil, "IS NOT", nil)
}

func (exp *QueryExpression) Between(field any, from any, to any, typ ...string) *QueryExpression {
	resolved := ""
	if len(typ) > 0 {
		resolved = typ[0]
	} else {
		resolved = exp.resolveType(fieldName(field), nil)
	}

	exp.parts = append(exp.parts, Between(field, from, to, resolved))

	return exp
}

// And returns a new AND expression built from conditions. The receiver is
// not modified; add the result where it belongs.
func (exp *QueryExpression) And(conditions any, types ...Types) *QueryExpression {
	return exp.child(ConjunctionAnd).Add(conditions, types...)
}

// Or returns a new OR expression built from conditions.
func (exp *QueryExpression) Or(conditions any, types ...Types) *QueryExpression {
	return exp.child(ConjunctionOr).Add(conditions, types...)
}

// Not adds the negation of conditions to the receiver.
func (exp *QueryExpression) Not(conditions any, types ...Types) *QueryExpression {
	exp.parts = append(exp.parts, &UnaryExpression{
		operator: "NOT",
		operand:  exp.child(ConjunctionAnd).Add(conditions, types...),
	})

	return exp
}

func (exp *QueryExpression) Count() int {
	return len(exp.parts)
}

func (exp *QueryExpression) Conjunction() string {
	return exp.conjunction
}

func (exp *QueryExpression) SetConjunction(conjunction string) *QueryExpression {
	exp.conjunction = strings.ToUpper(strings.TrimSpace(conjunction))

	return exp
}

func (exp *QueryExpression) Parts() []Expression {
	return append([]Expression{}, exp.parts...)
}

// Iterate replaces every part with the result of fn. Parts for which fn
// returns nil are removed.
func (exp *QueryExpression) Iterate(fn func(part Expression) Expression) *QueryExpression {
	parts := make([]Expression, 0, len(exp.parts))
	for _, part := range exp.parts {
		if replaced := fn(part); replaced != nil {
			parts = append(parts, replaced)
		}
	}

	exp.parts = parts

	return exp
}

func (exp *QueryExpression) Clone() *QueryExpression {
	clone := &QueryExpression{
		conjunction: exp.conjunction,
		typeMap:     exp.typeMap,
		query:       exp.query,
		parts:       make([]Expression, 0, len(exp.parts)),
	}

	for _, part := range exp.parts {
		clone.parts = append(clone.parts, cloneExpression(part))
	}

	return clone
}

func (exp *QueryExpression) SQL(binder *ValueBinder) (string, error) {
	parts := make([]string, 0, len(exp.parts))
	for _, part := range exp.parts {
		sql, err := compileExpression(binder, part)
		if err != nil {
			return "", err
		}

		if strings.TrimSpace(sql) == "" {
			continue
		}

		parts = append(parts, sql)
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}

	return "(" + strings.Join(parts, " "+exp.conjunction+" ") + ")", nil
}

func cloneExpression(expression Expression) Expression {
	switch typed := expression.(type) {
	case *QueryExpression:
		return typed.Clone()
	case *ComparisonExpression:
		return typed.clone()
	case *UnaryExpression:
		return &UnaryExpression{operator: typed.operator, operand: cloneExpression(typed.operand)}
	case *FunctionExpression:
		return typed.Clone()
	case *Query:
		return typed.Clone()
	}

	return expression
}

func mergeTypes(types []Types) Types {
	if len(types) == 1 {
		return types[0]
	}

	merged := Types{}
	for _, set := range types {
		for field, typ := range set {
			merged[field] = typ
		}
	}

	return merged
}

// isEmptyCondition reports whether conditions would add nothing.
func isEmptyCondition(conditions any) bool {
	switch typed := conditions.(type) {
	case nil:
		return true
	case *QueryExpression:
		return typed == nil
	case string:
		return strings.TrimSpace(typed) == ""
	case Conditions:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	case OrderedConditions:
		return len(typed) == 0
	case []Pair:
		return len(typed) == 0
	case []any:
		return len(typed) == 0
	case []Expression:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	}

	return false
}
