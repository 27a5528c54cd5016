package hermes

import (
	"fmt"
	"strings"
)

// FunctionArgument is one argument of a SQL function call. Literal
// arguments are rendered verbatim, everything else is bound.
type FunctionArgument struct {
	Value   any
	Literal bool
	Type    string
}

// Arg binds value with an explicit logical type.
func Arg(value any, typ string) FunctionArgument {
	return FunctionArgument{Value: value, Type: typ}
}

type FunctionExpression struct {
	name       string
	args       []FunctionArgument
	returnType string
	err        error
}

// Function builds NAME(args...). String arguments are bound as values; wrap
// column names in Literal or Identifier.
func Function(name string, returnType string, args ...any) *FunctionExpression {
	function := &FunctionExpression{name: name, returnType: returnType}

	return function.Add(args...)
}

func (function *FunctionExpression) Name() string {
	return function.name
}

func (function *FunctionExpression) ReturnType() string {
	return function.returnType
}

func (function *FunctionExpression) SetReturnType(typ string) *FunctionExpression {
	function.returnType = typ

	return function
}

func (function *FunctionExpression) Arguments() []FunctionArgument {
	return append([]FunctionArgument{}, function.args...)
}

func (function *FunctionExpression) Add(args ...any) *FunctionExpression {
	for _, arg := range args {
		switch typed := arg.(type) {
		case FunctionArgument:
			function.args = append(function.args, typed)
		case RawExpression:
			function.args = append(function.args, FunctionArgument{Value: typed, Literal: true})
		default:
			function.args = append(function.args, FunctionArgument{Value: arg})
		}
	}

	return function
}

func (function *FunctionExpression) Clone() *FunctionExpression {
	clone := *function
	clone.args = make([]FunctionArgument, 0, len(function.args))
	for _, arg := range function.args {
		if expression, ok := arg.Value.(Expression); ok {
			arg.Value = cloneExpression(expression)
		}

		clone.args = append(clone.args, arg)
	}

	return &clone
}

func (function *FunctionExpression) SQL(binder *ValueBinder) (string, error) {
	if function.err != nil {
		return "", &CompilationError{Field: function.name, Err: function.err}
	}

	if strings.TrimSpace(function.name) == "" {
		return "", compilationError("", "function name is empty")
	}

	args := make([]string, 0, len(function.args))
	for _, arg := range function.args {
		sql, err := function.compileArgument(binder, arg)
		if err != nil {
			return "", err
		}

		args = append(args, sql)
	}

	if binder.Dialect() != nil {
		if translated, ok := binder.Dialect().TranslateFunction(strings.ToUpper(function.name), args); ok {
			return translated, nil
		}
	}

	return function.name + "(" + strings.Join(args, ", ") + ")", nil
}

func (function *FunctionExpression) compileArgument(binder *ValueBinder, arg FunctionArgument) (string, error) {
	if arg.Literal {
		return fmt.Sprint(arg.Value), nil
	}

	if expression, ok := arg.Value.(Expression); ok {
		return compileExpression(binder, expression)
	}

	return binder.BindValue(arg.Value, baseType(arg.Type)), nil
}

// FunctionBuilder holds the factories for common SQL functions.
type FunctionBuilder struct{}

func Functions() FunctionBuilder {
	return FunctionBuilder{}
}

// literals turns plain strings into column references.
func literals(args []any) []any {
	converted := make([]any, 0, len(args))
	for _, arg := range args {
		if text, ok := arg.(string); ok {
			converted = append(converted, Literal(text))
			continue
		}

		converted = append(converted, arg)
	}

	return converted
}

func (FunctionBuilder) Count(expression any) *FunctionExpression {
	return Function("COUNT", TypeInteger, literals([]any{expression})...)
}

func (FunctionBuilder) Sum(expression any) *FunctionExpression {
	return Function("SUM", TypeFloat, literals([]any{expression})...)
}

func (FunctionBuilder) Avg(expression any) *FunctionExpression {
	return Function("AVG", TypeFloat, literals([]any{expression})...)
}

func (FunctionBuilder) Min(expression any) *FunctionExpression {
	return Function("MIN", "", literals([]any{expression})...)
}

func (FunctionBuilder) Max(expression any) *FunctionExpression {
	return Function("MAX", "", literals([]any{expression})...)
}

// Concat binds string arguments; use Literal for columns.
func (FunctionBuilder) Concat(args ...any) *FunctionExpression {
	return Function("CONCAT", TypeString, args...)
}

func (FunctionBuilder) Coalesce(args ...any) *FunctionExpression {
	return Function("COALESCE", "", args...)
}

// Now returns NOW() for "" or "datetime", CURRENT_DATE() for "date" and
// CURRENT_TIME() for "time".
func (FunctionBuilder) Now(kind string) *FunctionExpression {
	switch strings.ToLower(kind) {
	case "", TypeDateTime:
		return Function("NOW", TypeDateTime)
	case TypeDate:
		return Function("CURRENT_DATE", TypeDate)
	case TypeTime:
		return Function("CURRENT_TIME", TypeTime)
	}

	return &FunctionExpression{
		name: "NOW",
		err:  fmt.Errorf("invalid time kind %q", kind),
	}
}

func (FunctionBuilder) Rand() *FunctionExpression {
	return Function("RAND", TypeFloat)
}

func (FunctionBuilder) DateDiff(first any, second any) *FunctionExpression {
	return Function("DATEDIFF", TypeInteger, literals([]any{first, second})...)
}

func (FunctionBuilder) Call(name string, args ...any) *FunctionExpression {
	return Function(name, "", args...)
}
