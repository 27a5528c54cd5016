package hermes

import (
	"fmt"
	"strings"
)

// Dialect carries the driver-specific parts of rendering. Drivers embed
// StandardDialect and override what differs.
type Dialect interface {
	Name() string
	// TranslateFunction receives a function name and its compiled arguments
	// and returns replacement SQL, or false to render NAME(args).
	TranslateFunction(name string, args []string) (string, bool)
	LimitOffset(limit *int64, offset *int64) string
	SupportsDistinctOn() bool
	// OrderedUnion reports whether union members are wrapped in parentheses.
	OrderedUnion() bool
}

type StandardDialect struct{}

func DefaultDialect() Dialect {
	return StandardDialect{}
}

func (StandardDialect) Name() string {
	return "standard"
}

func (StandardDialect) TranslateFunction(name string, args []string) (string, bool) {
	return "", false
}

func (StandardDialect) LimitOffset(limit *int64, offset *int64) string {
	parts := []string{}
	if limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *limit))
	}

	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *offset))
	}

	return strings.Join(parts, " ")
}

func (StandardDialect) SupportsDistinctOn() bool {
	return true
}

func (StandardDialect) OrderedUnion() bool {
	return true
}
