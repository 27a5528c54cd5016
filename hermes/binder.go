package hermes

import (
	"fmt"
	"sort"
	"strings"
)

type Binding struct {
	Placeholder string
	Value       any
	Type        string
	Position    int
}

// ValueBinder hands out placeholders and records the values bound to them.
// A query and every query embedded in it compile against the same binder,
// which keeps placeholder numbers unique across the whole statement.
type ValueBinder struct {
	bindings map[string]Binding
	count    int
	dialect  Dialect
}

func NewValueBinder() *ValueBinder {
	return &ValueBinder{
		bindings: map[string]Binding{},
		dialect:  DefaultDialect(),
	}
}

// Placeholder allocates a new token without binding anything to it.
func (binder *ValueBinder) Placeholder(prefix string) string {
	if prefix == "" {
		prefix = "c"
	}

	prefix = strings.TrimPrefix(prefix, ":")
	token := fmt.Sprintf(":%s%d", prefix, binder.count)
	binder.count++

	return token
}

func (binder *ValueBinder) Bind(token string, value any, typ string) {
	existing, found := binder.bindings[token]
	position := len(binder.bindings)
	if found {
		position = existing.Position
	}

	binder.bindings[token] = Binding{
		Placeholder: token,
		Value:       value,
		Type:        typ,
		Position:    position,
	}
}

// BindValue allocates a placeholder for value and binds it in one step.
func (binder *ValueBinder) BindValue(value any, typ string) string {
	token := binder.Placeholder("c")
	binder.Bind(token, value, typ)

	return token
}

func (binder *ValueBinder) GenerateManyNamed(values []any, typ string) []string {
	tokens := make([]string, 0, len(values))
	for _, value := range values {
		tokens = append(tokens, binder.BindValue(value, typ))
	}

	return tokens
}

func (binder *ValueBinder) Bindings() []Binding {
	bindings := make([]Binding, 0, len(binder.bindings))
	for _, binding := range binder.bindings {
		bindings = append(bindings, binding)
	}

	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Position < bindings[j].Position
	})

	return bindings
}

func (binder *ValueBinder) Count() int {
	return binder.count
}

func (binder *ValueBinder) Reset() {
	binder.bindings = map[string]Binding{}
	binder.count = 0
}

// ResetCount restarts numbering but keeps existing bindings, so a recompile
// overwrites the same tokens in place.
func (binder *ValueBinder) ResetCount() {
	binder.count = 0
}

func (binder *ValueBinder) Dialect() Dialect {
	return binder.dialect
}

func (binder *ValueBinder) setDialect(dialect Dialect) {
	if dialect == nil {
		dialect = DefaultDialect()
	}

	binder.dialect = dialect
}
