package hermes

import (
	"errors"
	"fmt"
)

var ErrNoConnection = errors.New("query has no connection")

// UsageError is returned when the builder methods are called in an order
// that cannot produce a statement, for example Values before Insert.
type UsageError struct {
	Method string
	Reason string
}

func (err *UsageError) Error() string {
	return fmt.Sprintf("invalid use of %s: %s", err.Method, err.Reason)
}

type TypeConversionError struct {
	Type  string
	Value any
	Err   error
}

func (err *TypeConversionError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("cannot convert %#v to %s: %s", err.Value, err.Type, err.Err)
	}

	return fmt.Sprintf("cannot convert %#v to %s", err.Value, err.Type)
}

func (err *TypeConversionError) Unwrap() error {
	return err.Err
}

// CompilationError locates a malformed node by the clause being rendered
// and, when known, the field it refers to.
type CompilationError struct {
	Clause string
	Field  string
	Err    error
}

func (err *CompilationError) Error() string {
	location := err.Clause
	if err.Field != "" {
		location = fmt.Sprintf("%s (%s)", location, err.Field)
	}

	if location == "" {
		return fmt.Sprintf("compile: %s", err.Err)
	}

	return fmt.Sprintf("compile %s: %s", location, err.Err)
}

func (err *CompilationError) Unwrap() error {
	return err.Err
}

func usageError(method string, format string, args ...any) *UsageError {
	return &UsageError{
		Method: method,
		Reason: fmt.Sprintf(format, args...),
	}
}

func compilationError(field string, format string, args ...any) *CompilationError {
	return &CompilationError{
		Field: field,
		Err:   fmt.Errorf(format, args...),
	}
}

// inClause stamps the clause name onto a compilation error raised deeper in
// the tree, leaving other errors untouched.
func inClause(clause string, err error) error {
	if err == nil {
		return nil
	}

	var compileErr *CompilationError
	if errors.As(err, &compileErr) {
		if compileErr.Clause == "" {
			compileErr.Clause = clause
		}

		return err
	}

	var conversionErr *TypeConversionError
	if errors.As(err, &conversionErr) {
		return err
	}

	return &CompilationError{
		Clause: clause,
		Err:    err,
	}
}
