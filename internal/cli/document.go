package cli

import (
	"os"
	"strings"

	"github.com/lunagic/hermes/hermes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadDocument reads a YAML query document from disk.
func LoadDocument(filePath string) (*yaml.Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "reading query document")
	}

	return ParseDocument(data)
}

// ParseDocument returns the root mapping of a query document. The node
// tree is kept so that conditions compile in the order they were written.
func ParseDocument(data []byte) (*yaml.Node, error) {
	document := &yaml.Node{}
	if err := yaml.Unmarshal(data, document); err != nil {
		return nil, errors.Wrap(err, "parsing query document")
	}

	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return nil, errors.New("query document is empty")
	}

	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: query document must be a mapping", root.Line)
	}

	return root, nil
}

// BuildQuery applies a query document to a query made by newQuery.
// Subqueries in the document are made by newQuery too.
func BuildQuery(root *yaml.Node, newQuery func() *hermes.Query) (*hermes.Query, error) {
	builder := documentBuilder{newQuery: newQuery}

	return builder.build(root)
}

type documentBuilder struct {
	newQuery func() *hermes.Query
}

type nodePair struct {
	key   string
	value *yaml.Node
}

func mappingPairs(node *yaml.Node) []nodePair {
	pairs := make([]nodePair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, nodePair{key: node.Content[i].Value, value: node.Content[i+1]})
	}

	return pairs
}

func (builder documentBuilder) build(node *yaml.Node) (*hermes.Query, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: query must be a mapping", node.Line)
	}

	q := builder.newQuery()
	pairs := mappingPairs(node)

	// Types apply to every clause, wherever they appear in the document.
	page := 0
	for _, pair := range pairs {
		switch pair.key {
		case "types":
			types := map[string]string{}
			if err := pair.value.Decode(&types); err != nil {
				return nil, errors.Wrapf(err, "line %d: types", pair.value.Line)
			}

			q.TypeMap().AddDefaults(types)
		case "page":
			if err := pair.value.Decode(&page); err != nil {
				return nil, errors.Wrapf(err, "line %d: page", pair.value.Line)
			}
		}
	}

	for _, pair := range pairs {
		if err := builder.apply(q, pair.key, pair.value); err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", pair.value.Line, pair.key)
		}
	}

	if page > 0 {
		q.Page(page, 0)
	}

	return q, q.Err()
}

func (builder documentBuilder) apply(q *hermes.Query, key string, node *yaml.Node) error {
	switch key {
	case "types", "page":
		return nil
	case "select":
		fields, err := builder.fields(node)
		if err != nil {
			return err
		}

		q.Select(fields...)
	case "distinct":
		if node.Kind == yaml.ScalarNode {
			enabled := false
			if err := node.Decode(&enabled); err != nil {
				return err
			}

			if enabled {
				q.Distinct()
			}

			return nil
		}

		on, err := decodeStrings(node)
		if err != nil {
			return err
		}

		q.Distinct(on)
	case "from":
		tables, err := builder.fields(node)
		if err != nil {
			return err
		}

		q.From(tables...)
	case "join":
		joins, err := builder.joins(node)
		if err != nil {
			return err
		}

		q.Join(joins...)
	case "where", "and_where":
		conditions, err := builder.conditions(node)
		if err != nil {
			return err
		}

		q.Where(conditions)
	case "or_where":
		conditions, err := builder.conditions(node)
		if err != nil {
			return err
		}

		q.OrWhere(conditions)
	case "having":
		conditions, err := builder.conditions(node)
		if err != nil {
			return err
		}

		q.Having(conditions)
	case "or_having":
		conditions, err := builder.conditions(node)
		if err != nil {
			return err
		}

		q.OrHaving(conditions)
	case "group":
		fields, err := decodeStrings(node)
		if err != nil {
			return err
		}

		q.Group(fields)
	case "order":
		return builder.order(q, node)
	case "limit":
		limit := 0
		if err := node.Decode(&limit); err != nil {
			return err
		}

		q.Limit(limit)
	case "offset":
		offset := 0
		if err := node.Decode(&offset); err != nil {
			return err
		}

		q.Offset(offset)
	case "union", "union_all":
		if node.Kind != yaml.SequenceNode {
			return errors.New("expected a list of queries")
		}

		for _, item := range node.Content {
			other, err := builder.build(item)
			if err != nil {
				return err
			}

			if key == "union_all" {
				q.UnionAll(other)
			} else {
				q.Union(other)
			}
		}
	case "epilog":
		q.Epilog(node.Value)
	case "cache":
		q.Cache(node.Value)
	case "insert":
		return builder.insert(q, node)
	case "update":
		return builder.update(q, node)
	case "delete":
		tables, err := decodeStrings(node)
		if err != nil {
			return err
		}

		q.Delete(tables...)
	default:
		return errors.Errorf("unknown key %q", key)
	}

	return nil
}

// fields reads a list of names, a mapping of alias to name or subquery, or
// a list mixing both.
func (builder documentBuilder) fields(node *yaml.Node) ([]any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []any{node.Value}, nil
	case yaml.MappingNode:
		fields := []any{}
		for _, pair := range mappingPairs(node) {
			if pair.value.Kind == yaml.MappingNode {
				subquery, err := builder.build(pair.value)
				if err != nil {
					return nil, err
				}

				fields = append(fields, hermes.As(subquery, pair.key))
				continue
			}

			fields = append(fields, hermes.As(pair.value.Value, pair.key))
		}

		return fields, nil
	case yaml.SequenceNode:
		fields := []any{}
		for _, item := range node.Content {
			more, err := builder.fields(item)
			if err != nil {
				return nil, err
			}

			fields = append(fields, more...)
		}

		return fields, nil
	}

	return nil, errors.Errorf("line %d: unsupported field list", node.Line)
}

func (builder documentBuilder) joins(node *yaml.Node) ([]hermes.JoinClause, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, errors.New("expected a list of joins")
	}

	joins := []hermes.JoinClause{}
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, errors.Errorf("line %d: join must be a mapping", item.Line)
		}

		clause := hermes.JoinClause{}
		for _, pair := range mappingPairs(item) {
			switch pair.key {
			case "table":
				if pair.value.Kind == yaml.MappingNode {
					subquery, err := builder.build(pair.value)
					if err != nil {
						return nil, err
					}

					clause.Table = subquery
					continue
				}

				clause.Table = pair.value.Value
			case "alias":
				clause.Alias = pair.value.Value
			case "type":
				clause.Type = strings.ToUpper(pair.value.Value)
			case "on":
				conditions, err := builder.conditions(pair.value)
				if err != nil {
					return nil, err
				}

				clause.Conditions = conditions
			default:
				return nil, errors.Errorf("line %d: unknown join key %q", pair.value.Line, pair.key)
			}
		}

		joins = append(joins, clause)
	}

	return joins, nil
}

// conditions turns a scalar into raw SQL, a list into AND-ed parts and a
// mapping into ordered "field operator" conditions.
func (builder documentBuilder) conditions(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value, nil
	case yaml.SequenceNode:
		parts := []any{}
		for _, item := range node.Content {
			part, err := builder.conditions(item)
			if err != nil {
				return nil, err
			}

			parts = append(parts, part)
		}

		return parts, nil
	case yaml.MappingNode:
		conditions := hermes.OrderedConditions{}
		for _, pair := range mappingPairs(node) {
			value, err := builder.conditionValue(pair.key, pair.value)
			if err != nil {
				return nil, err
			}

			conditions = append(conditions, hermes.Cond(pair.key, value))
		}

		return conditions, nil
	}

	return nil, errors.Errorf("line %d: unsupported conditions", node.Line)
}

func (builder documentBuilder) conditionValue(key string, node *yaml.Node) (any, error) {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case hermes.ConjunctionAnd, hermes.ConjunctionOr, "NOT":
		return builder.conditions(node)
	}

	if node.Kind == yaml.MappingNode {
		return builder.build(node)
	}

	return decodeValue(node)
}

func (builder documentBuilder) order(q *hermes.Query, node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		q.Order(node.Value)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if err := builder.order(q, item); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for _, pair := range mappingPairs(node) {
			q.Order(map[string]string{pair.key: pair.value.Value})
		}
	default:
		return errors.Errorf("line %d: unsupported order", node.Line)
	}

	return nil
}

func (builder documentBuilder) insert(q *hermes.Query, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("insert must be a mapping")
	}

	table := ""
	columns := []string{}
	var rows *yaml.Node
	for _, pair := range mappingPairs(node) {
		switch pair.key {
		case "table":
			table = pair.value.Value
		case "columns":
			decoded, err := decodeStrings(pair.value)
			if err != nil {
				return err
			}

			columns = decoded
		case "values":
			rows = pair.value
		default:
			return errors.Errorf("line %d: unknown insert key %q", pair.value.Line, pair.key)
		}
	}

	if rows == nil {
		return errors.New("insert needs values")
	}

	// A mapping is an INSERT ... SELECT query.
	if rows.Kind == yaml.MappingNode {
		subquery, err := builder.build(rows)
		if err != nil {
			return err
		}

		q.Insert(table, columns).Values(subquery)

		return nil
	}

	if rows.Kind != yaml.SequenceNode {
		return errors.Errorf("line %d: values must be a list of rows or a query", rows.Line)
	}

	// Without explicit columns, the first row's keys are the columns.
	inferColumns := len(columns) == 0
	values := []map[string]any{}
	for _, row := range rows.Content {
		if row.Kind != yaml.MappingNode {
			return errors.Errorf("line %d: row must be a mapping", row.Line)
		}

		decoded := map[string]any{}
		for _, pair := range mappingPairs(row) {
			if inferColumns && len(values) == 0 {
				columns = append(columns, pair.key)
			}

			value, err := decodeValue(pair.value)
			if err != nil {
				return err
			}

			decoded[pair.key] = value
		}

		values = append(values, decoded)
	}

	q.Insert(table, columns).Values(values)

	return nil
}

func (builder documentBuilder) update(q *hermes.Query, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("update must be a mapping")
	}

	for _, pair := range mappingPairs(node) {
		switch pair.key {
		case "table":
			q.Update(pair.value.Value)
		case "set":
			if pair.value.Kind != yaml.MappingNode {
				return errors.Errorf("line %d: set must be a mapping", pair.value.Line)
			}

			for _, assignment := range mappingPairs(pair.value) {
				value, err := decodeValue(assignment.value)
				if err != nil {
					return err
				}

				q.Set(assignment.key, value)
			}
		default:
			return errors.Errorf("line %d: unknown update key %q", pair.value.Line, pair.key)
		}
	}

	return nil
}

func decodeValue(node *yaml.Node) (any, error) {
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, errors.Wrapf(err, "line %d", node.Line)
	}

	return value, nil
}

func decodeStrings(node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode {
		return []string{node.Value}, nil
	}

	values := []string{}
	if err := node.Decode(&values); err != nil {
		return nil, errors.Wrapf(err, "line %d", node.Line)
	}

	return values, nil
}
