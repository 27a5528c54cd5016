package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermestools"
)

const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the statement failed to compile or run
	ExitCommandError = 2 // bad flags, documents or configuration
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

type outputBinding struct {
	Placeholder string `json:"placeholder"`
	Value       any    `json:"value"`
	Type        string `json:"type,omitempty"`
}

type outputStatement struct {
	SQL      string          `json:"sql"`
	Bindings []outputBinding `json:"bindings"`
}

func writeStatement(w io.Writer, format string, statement hermes.CompiledStatement) error {
	bindings := hermestools.Map(statement.Bindings, func(binding hermes.Binding) outputBinding {
		return outputBinding{
			Placeholder: binding.Placeholder,
			Value:       statement.Parameters[binding.Placeholder],
			Type:        binding.Type,
		}
	})

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outputStatement{SQL: statement.SQL, Bindings: bindings})
	}

	if _, err := fmt.Fprintln(w, statement.SQL); err != nil {
		return err
	}

	for _, binding := range bindings {
		line := binding.Placeholder + " = " + formatValue(binding.Value)
		if binding.Type != "" {
			line += " (" + binding.Type + ")"
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// writeRows writes one line per row, as JSON or as sorted column=value
// pairs.
func writeRows(w io.Writer, format string, rows []hermes.Row) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		if format == "json" {
			if err := encoder.Encode(row); err != nil {
				return err
			}
			continue
		}

		columns := make([]string, 0, len(row))
		for column := range row {
			columns = append(columns, column)
		}

		sort.Strings(columns)

		pairs := hermestools.Map(columns, func(column string) string {
			return column + "=" + formatValue(row[column])
		})

		if _, err := fmt.Fprintln(w, strings.Join(pairs, " ")); err != nil {
			return err
		}
	}

	return nil
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(typed)
	case []byte:
		return strconv.Quote(string(typed))
	case time.Time:
		return typed.Format(time.RFC3339)
	}

	return fmt.Sprint(value)
}
