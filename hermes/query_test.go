package hermes_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lunagic/hermes/hermes"
	"gotest.tools/v3/assert"
)

func compileSQL(t *testing.T, q *hermes.Query) string {
	t.Helper()

	sql, err := q.SQL(nil)
	assert.NilError(t, err)

	return sql
}

func assertUsageError(t *testing.T, q *hermes.Query, method string) {
	t.Helper()

	sql, err := q.SQL(nil)
	assert.Equal(t, sql, "")

	var usageErr *hermes.UsageError
	assert.Assert(t, errors.As(err, &usageErr), "expected a usage error, got %v", err)
	assert.Equal(t, usageErr.Method, method)
}

func TestQueryRecompileIsIdempotent(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Select("id", "title").
		From("articles").
		Where(hermes.Conditions{"id >": 1, "title LIKE": "%go%"}).
		Order("id").
		Limit(10)

	first := compileSQL(t, q)
	firstBindings := q.ValueBinder().Bindings()

	second := compileSQL(t, q)
	secondBindings := q.ValueBinder().Bindings()

	assert.Equal(t, first, "SELECT id, title FROM articles WHERE (id > :c0 AND title LIKE :c1) ORDER BY id LIMIT 10")
	assert.Equal(t, first, second)
	assert.DeepEqual(t, firstBindings, secondBindings)

	q.Limit(5).Offset(10)
	assert.Equal(t, compileSQL(t, q), "SELECT id, title FROM articles WHERE (id > :c0 AND title LIKE :c1) ORDER BY id LIMIT 5 OFFSET 10")
	assert.Equal(t, q.ValueBinder().Count(), 2)
}

func TestQuerySharedBinderAccumulates(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select("id").From("articles").Where(hermes.Conditions{"id": 1})
	binder := hermes.NewValueBinder()

	first, err := q.SQL(binder)
	assert.NilError(t, err)
	assert.Equal(t, first, "SELECT id FROM articles WHERE id = :c0")

	second, err := q.SQL(binder)
	assert.NilError(t, err)
	assert.Equal(t, second, "SELECT id FROM articles WHERE id = :c1")
	assert.Equal(t, binder.Count(), 2)

	binder.Reset()
	third, err := q.SQL(binder)
	assert.NilError(t, err)
	assert.Equal(t, third, first)
}

func TestQueryAppendAndReplace(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select("a").From("t").Select("b")
	assert.Equal(t, compileSQL(t, q), "SELECT a, b FROM t")

	q.ReplaceSelect("b")
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM t")

	q.From("u")
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM t, u")

	q.ReplaceFrom(hermes.As("v", "x"))
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x")

	q.Where(hermes.Conditions{"a": 1}).Where(hermes.Conditions{"b": 2})
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x WHERE (a = :c0 AND b = :c1)")

	q.ReplaceWhere(hermes.Conditions{"c": 3})
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x WHERE c = :c0")

	q.Order("a").Order("b")
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x WHERE c = :c0 ORDER BY a, b")

	q.ReplaceOrder("c")
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x WHERE c = :c0 ORDER BY c")

	q.Group("a").Group("b").ReplaceGroup("c")
	assert.Equal(t, compileSQL(t, q), "SELECT b FROM v x WHERE c = :c0 GROUP BY c ORDER BY c")
}

func TestQueryEmptyClausesAreElided(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select("id").From("articles")
	sql := compileSQL(t, q)
	assert.Equal(t, sql, "SELECT id FROM articles")
	assert.Assert(t, !strings.Contains(sql, "WHERE"))

	q.Where(hermes.Conditions{}).Where(hermes.NewExpr()).Having(nil).OrWhere(hermes.And())
	assert.Equal(t, compileSQL(t, q), "SELECT id FROM articles")

	assert.Equal(t, compileSQL(t, hermes.NewQuery(nil).From("articles")), "SELECT * FROM articles")
}

func TestQueryInNormalization(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil, hermes.WithTypeMap(hermes.NewTypeMap(map[string]string{"id": hermes.TypeInteger}))).
		Select("id").
		From("articles").
		Where(hermes.Conditions{"id": []int{1, 2, 3}})

	statement, err := q.Compile()
	assert.NilError(t, err)
	assert.Equal(t, statement.SQL, "SELECT id FROM articles WHERE id IN (:c0, :c1, :c2)")
	assert.Equal(t, statement.Type, hermes.StatementSelect)
	assert.Equal(t, len(statement.Bindings), 3)

	for i, binding := range statement.Bindings {
		assert.Equal(t, binding.Type, hermes.TypeInteger)
		assert.Equal(t, binding.Value, i+1)
	}

	assert.DeepEqual(t, statement.Args(), []any{int64(1), int64(2), int64(3)})
	assert.DeepEqual(t, statement.Parameters, map[string]any{":c0": int64(1), ":c1": int64(2), ":c2": int64(3)})
}

func TestQueryBooleanNesting(t *testing.T) {
	t.Parallel()

	posted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q := hermes.NewQuery(nil).
		From("articles").
		Where(hermes.Conditions{"id": 2, "id >": 1}).
		OrWhere(hermes.Conditions{"id": 1}).
		AndWhere(hermes.Conditions{"posted >=": posted})

	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE (((id = :c0 AND id > :c1) OR id = :c2) AND posted >= :c3)")
	assert.DeepEqual(t, bindingValues(q.ValueBinder()), []any{2, 1, 1, posted})
}

func TestQueryOrWhereWithoutRoot(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("articles").OrWhere(hermes.Conditions{"id": 1}).OrWhere(hermes.Conditions{"id": 2})
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE (id = :c0 OR id = :c1)")
}

func TestQueryWhereFunc(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("articles").Where(hermes.Conditions{"published": "Y"})
	q.OrWhere(hermes.ExpressionFunc(func(exp *hermes.QueryExpression, q *hermes.Query) hermes.Expression {
		return exp.Eq("author_id", 1).Gt("votes", 10)
	}))

	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE (published = :c0 OR (author_id = :c1 AND votes > :c2))")
}

func TestQuerySubqueryBindings(t *testing.T) {
	t.Parallel()

	subquery := hermes.NewQuery(nil).
		Select("article_id").
		From("comments").
		Where(hermes.Conditions{"published": "Y", "votes >": 10})

	q := hermes.NewQuery(nil).
		Select("id").
		From("articles").
		Where(hermes.Conditions{"author_id": 1, "id IN": subquery})

	assert.Equal(t, compileSQL(t, q), "SELECT id FROM articles WHERE (author_id = :c0 AND id IN (SELECT article_id FROM comments WHERE (published = :c1 AND votes > :c2)))")
	assert.Equal(t, q.ValueBinder().Count(), 3)
	assert.DeepEqual(t, bindingValues(q.ValueBinder()), []any{1, "Y", 10})

	// the subquery still compiles on its own binder
	assert.Equal(t, compileSQL(t, subquery), "SELECT article_id FROM comments WHERE (published = :c0 AND votes > :c1)")

	scalar := hermes.NewQuery(nil).Select("MAX(id)").From("articles")
	q = hermes.NewQuery(nil).From("articles").Where(hermes.Conditions{"id": scalar})
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE id = (SELECT MAX(id) FROM articles)")
}

func TestQuerySubqueryInSelectAndFrom(t *testing.T) {
	t.Parallel()

	counts := hermes.NewQuery(nil).
		Select(hermes.Functions().Count("*")).
		From("comments").
		Where("comments.article_id = articles.id")

	q := hermes.NewQuery(nil).
		Select("id", hermes.As(counts, "comment_count")).
		From("articles")

	assert.Equal(t, compileSQL(t, q), "SELECT id, (SELECT COUNT(*) FROM comments WHERE comments.article_id = articles.id) AS comment_count FROM articles")

	derived := hermes.NewQuery(nil).Select("id").From("articles").Where(hermes.Conditions{"published": "Y"})
	q = hermes.NewQuery(nil).Select("a.id").From(hermes.As(derived, "a")).Where(hermes.Conditions{"a.id >": 3})

	assert.Equal(t, compileSQL(t, q), "SELECT a.id FROM (SELECT id FROM articles WHERE published = :c0) a WHERE a.id > :c1")
}

func TestQueryNegation(t *testing.T) {
	t.Parallel()

	posted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q := hermes.NewQuery(nil).
		Select("id").
		From("articles").
		Where(hermes.Not(hermes.And(hermes.Conditions{"id": 2, "posted": posted})))

	assert.Equal(t, compileSQL(t, q), "SELECT id FROM articles WHERE NOT (id = :c0 AND posted = :c1)")
}

func TestQueryInsertMixingValues(t *testing.T) {
	t.Parallel()

	drafts := hermes.NewQuery(nil).Select("title").From("drafts")

	q := hermes.NewQuery(nil).
		Insert("articles", []string{"title"}).
		Values(map[string]any{"title": "a"}).
		Values(drafts)
	assertUsageError(t, q, "Values")

	q = hermes.NewQuery(nil).
		Insert("articles", []string{"title"}).
		Values(drafts).
		Values(map[string]any{"title": "a"})
	assertUsageError(t, q, "Values")

	q = hermes.NewQuery(nil).Values(map[string]any{"title": "a"})
	assertUsageError(t, q, "Values")
}

func TestQueryInsert(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Insert("articles", []string{"title", "author_id"}, hermes.Types{"author_id": hermes.TypeInteger}).
		Values(map[string]any{"title": "a", "author_id": "1"}).
		Values(hermes.Conditions{"title": "b"})

	statement, err := q.Compile()
	assert.NilError(t, err)
	assert.Equal(t, statement.SQL, "INSERT INTO articles (title, author_id) VALUES (:c0, :c1), (:c2, :c3)")
	assert.Equal(t, statement.Type, hermes.StatementInsert)
	assert.DeepEqual(t, statement.Args(), []any{"a", int64(1), "b", nil})

	drafts := hermes.NewQuery(nil).Select("title").From("drafts").Where(hermes.Conditions{"ready": true})
	q = hermes.NewQuery(nil).Insert("articles", []string{"title"}).Values(drafts).Epilog("RETURNING id")

	assert.Equal(t, compileSQL(t, q), "INSERT INTO articles (title) SELECT title FROM drafts WHERE ready = :c0 RETURNING id")

	q = hermes.NewQuery(nil).Insert("articles", []string{"title"})
	_, err = q.SQL(nil)

	var compileErr *hermes.CompilationError
	assert.Assert(t, errors.As(err, &compileErr))
	assert.Equal(t, compileErr.Clause, "values")
}

func TestQueryUnion(t *testing.T) {
	t.Parallel()

	first := hermes.NewQuery(nil).Select("id").From("articles").Where(hermes.Conditions{"id": 1})
	second := hermes.NewQuery(nil).Select("id").From("comments").Where(hermes.Conditions{"id": 2})
	first.Union(second)

	assert.Equal(t, compileSQL(t, first), "SELECT id FROM articles WHERE id = :c0 UNION (SELECT id FROM comments WHERE id = :c1)")

	first.ReplaceUnion(second, true)
	assert.Equal(t, compileSQL(t, first), "SELECT id FROM articles WHERE id = :c0 UNION ALL (SELECT id FROM comments WHERE id = :c1)")

	unordered := hermes.NewQuery(nil, hermes.WithDialect(pipeDialect{})).Select("id").From("articles").UnionAll(second)
	assert.Equal(t, compileSQL(t, unordered), "SELECT id FROM articles UNION ALL SELECT id FROM comments WHERE id = :c0")

	first.ReplaceUnion(nil, false)
	assert.Equal(t, compileSQL(t, first), "SELECT id FROM articles WHERE id = :c0")

	assertUsageError(t, first.Union(first), "Union")
}

func TestQueryFunctions(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil)
	q.Select(hermes.As(q.Func().Count("*"), "count")).From("articles")
	assert.Equal(t, compileSQL(t, q), "SELECT COUNT(*) AS count FROM articles")

	q = hermes.NewQuery(nil)
	q.Select(hermes.As(q.Func().Concat(hermes.Literal("title"), " suffix"), "label")).From("articles")
	assert.Equal(t, compileSQL(t, q), "SELECT CONCAT(title, :c0) AS label FROM articles")
	assert.DeepEqual(t, bindingValues(q.ValueBinder()), []any{" suffix"})

	q = hermes.NewQuery(nil).From("articles").Order(hermes.Functions().Rand())
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles ORDER BY RAND()")
}

func TestQuerySelectForms(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select(map[string]any{"b": "title", "a": "id"}).From("articles")
	assert.Equal(t, compileSQL(t, q), "SELECT id AS a, title AS b FROM articles")

	q = hermes.NewQuery(nil).Select(hermes.Fields{hermes.As("title", "t"), hermes.As("id", "i")}).From("articles")
	assert.Equal(t, compileSQL(t, q), "SELECT title AS t, id AS i FROM articles")

	q = hermes.NewQuery(nil).From("articles").Select(hermes.SelectFunc(func(q *hermes.Query) []any {
		return []any{"author_id", hermes.As(q.Func().Count("*"), "total")}
	}))
	assert.Equal(t, compileSQL(t, q), "SELECT author_id, COUNT(*) AS total FROM articles")

	q = hermes.NewQuery(nil).Select([]string{"id", "title"}).From("articles")
	assert.Equal(t, compileSQL(t, q), "SELECT id, title FROM articles")

	assertUsageError(t, hermes.NewQuery(nil).Select(42), "Select")
}

func TestQueryJoins(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Select("articles.id", "a.name").
		From("articles").
		InnerJoin(hermes.As("authors", "a"), "a.id = articles.author_id").
		LeftJoin(hermes.As("comments", "c"), hermes.Conditions{"c.article_id = articles.id AND c.published": "Y"})

	_, err := q.SQL(nil)
	var compileErr *hermes.CompilationError
	assert.Assert(t, errors.As(err, &compileErr))
	assert.Equal(t, compileErr.Clause, "join")

	q = hermes.NewQuery(nil).
		Select("articles.id", "a.name").
		From("articles").
		InnerJoin(hermes.As("authors", "a"), "a.id = articles.author_id").
		LeftJoin(hermes.As("comments", "c"), []any{"c.article_id = articles.id", hermes.Conditions{"c.published": "Y"}})

	assert.Equal(t, compileSQL(t, q), "SELECT articles.id, a.name FROM articles "+
		"INNER JOIN authors a ON a.id = articles.author_id "+
		"LEFT JOIN comments c ON (c.article_id = articles.id AND c.published = :c0)")

	q.Join(hermes.JoinClause{Table: "people", Alias: "a", Type: "right"})
	assert.Equal(t, compileSQL(t, q), "SELECT articles.id, a.name FROM articles "+
		"RIGHT JOIN people a ON 1 = 1 "+
		"LEFT JOIN comments c ON (c.article_id = articles.id AND c.published = :c0)")

	q.RemoveJoin("c")
	assert.Equal(t, compileSQL(t, q), "SELECT articles.id, a.name FROM articles RIGHT JOIN people a ON 1 = 1")

	derived := hermes.NewQuery(nil).Select("article_id", hermes.As(hermes.Functions().Count("*"), "total")).From("comments").Group("article_id")
	q.ReplaceJoin(hermes.JoinClause{Table: derived, Alias: "cc", Type: hermes.JoinLeft, Conditions: "cc.article_id = articles.id"})
	assert.Equal(t, compileSQL(t, q), "SELECT articles.id, a.name FROM articles "+
		"LEFT JOIN (SELECT article_id, COUNT(*) AS total FROM comments GROUP BY article_id) cc ON cc.article_id = articles.id")

	joins, err := q.Clause("join")
	assert.NilError(t, err)
	assert.Equal(t, len(joins.([]hermes.JoinClause)), 1)
}

func TestQueryJoinNilConditions(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("a").Join(hermes.JoinClause{Table: "b", Conditions: (*hermes.QueryExpression)(nil)})
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM a INNER JOIN b ON 1 = 1")

	clone := q.Clone()
	assert.Equal(t, compileSQL(t, clone), "SELECT * FROM a INNER JOIN b ON 1 = 1")

	q = hermes.NewQuery(nil).From("a").Where((*hermes.QueryExpression)(nil))
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM a")
}

func TestQueryDistinct(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select("author_id").From("articles").Distinct()
	assert.Equal(t, compileSQL(t, q), "SELECT DISTINCT author_id FROM articles")

	q = hermes.NewQuery(nil).Select("author_id", "id").From("articles").Distinct("author_id")
	assert.Equal(t, compileSQL(t, q), "SELECT DISTINCT ON (author_id) author_id, id FROM articles")

	q = hermes.NewQuery(nil, hermes.WithDialect(pipeDialect{})).Select("author_id", "id").From("articles").Distinct("author_id").Group("id", "author_id")
	assert.Equal(t, compileSQL(t, q), "SELECT author_id, id FROM articles GROUP BY author_id, id")

	q.ClearDistinct()
	assert.Equal(t, compileSQL(t, q), "SELECT author_id, id FROM articles GROUP BY id, author_id")
}

func TestQueryGroupAndHaving(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Select("author_id", hermes.As(hermes.Functions().Count("*"), "total")).
		From("articles").
		Group("author_id").
		Having(hermes.Conditions{"COUNT(*) >": 1}).
		OrHaving(hermes.Conditions{"author_id": 7})

	assert.Equal(t, compileSQL(t, q), "SELECT author_id, COUNT(*) AS total FROM articles GROUP BY author_id HAVING (COUNT(*) > :c0 OR author_id = :c1)")

	q.ReplaceHaving(hermes.Conditions{"total >": 2})
	assert.Equal(t, compileSQL(t, q), "SELECT author_id, COUNT(*) AS total FROM articles GROUP BY author_id HAVING total > :c0")
}

func TestQueryGroupByAlias(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Select(hermes.As("SUBSTR(posted, 1, 4)", "year"), hermes.As(hermes.Functions().Count("*"), "total")).
		From("articles").
		Group("year").
		Order("year")

	assert.Equal(t, compileSQL(t, q), "SELECT SUBSTR(posted, 1, 4) AS year, COUNT(*) AS total FROM articles GROUP BY year ORDER BY year")
}

func TestQueryOrder(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		From("articles").
		Order("title DESC").
		OrderAsc("id").
		Order(map[string]string{"b": "desc", "a": "asc"})

	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles ORDER BY title DESC, id ASC, a ASC, b DESC")

	assertUsageError(t, hermes.NewQuery(nil).Order(map[string]string{"a": "sideways"}), "Order")

	q = hermes.NewQuery(nil).
		From("articles").
		Order(hermes.Pairs("title", "desc", "posted", "", "id", "ASC"))

	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles ORDER BY title DESC, posted ASC, id ASC")

	assertUsageError(t, hermes.NewQuery(nil).Order([]hermes.Pair{{Key: "a", Value: "up"}}), "Order")
	assertUsageError(t, hermes.NewQuery(nil).Order([]hermes.Pair{{Key: "a", Value: 1}}), "Order")
}

func TestQueryLimitOffsetPage(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("articles").Limit(10).Offset(20)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles LIMIT 10 OFFSET 20")

	q.ClearLimit().ClearOffset().Page(3, 10)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles LIMIT 10 OFFSET 20")

	q.Page(1, 0)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles LIMIT 10 OFFSET 0")

	limit, err := q.Clause("limit")
	assert.NilError(t, err)
	assert.Equal(t, *limit.(*int64), int64(10))

	assertUsageError(t, hermes.NewQuery(nil).Page(0, 10), "Page")
	assertUsageError(t, hermes.NewQuery(nil).Page(2, 0), "Page")
	assertUsageError(t, hermes.NewQuery(nil).Limit(-1).Offset(-2), "Limit")
}

func TestQueryUpdate(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).
		Update("articles").
		Set("title", "x").
		SetExpression(hermes.Raw("body = title")).
		Where(hermes.Conditions{"id": 1})

	assert.Equal(t, compileSQL(t, q), "UPDATE articles SET title = :c0, body = title WHERE id = :c1")
	assert.Equal(t, q.Type(), hermes.StatementUpdate)

	q = hermes.NewQuery(nil).Update("articles").SetValues(hermes.Conditions{"b": 2, "a": nil})
	assert.Equal(t, compileSQL(t, q), "UPDATE articles SET a = :c0, b = :c1")

	_, err := hermes.NewQuery(nil).Update("articles").SQL(nil)
	var compileErr *hermes.CompilationError
	assert.Assert(t, errors.As(err, &compileErr))
	assert.Equal(t, compileErr.Clause, "set")

	assertUsageError(t, hermes.NewQuery(nil).Set("title", "x"), "Set")
}

func TestQueryDelete(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Delete("articles").Where(hermes.Conditions{"id": 1})
	assert.Equal(t, compileSQL(t, q), "DELETE FROM articles WHERE id = :c0")

	q = hermes.NewQuery(nil).Delete().From("articles").Where(hermes.Conditions{"id": 1})
	assert.Equal(t, compileSQL(t, q), "DELETE FROM articles WHERE id = :c0")

	_, err := hermes.NewQuery(nil).Delete().SQL(nil)
	var compileErr *hermes.CompilationError
	assert.Assert(t, errors.As(err, &compileErr))
	assert.Equal(t, compileErr.Clause, "from")

	assertUsageError(t, hermes.NewQuery(nil).Delete("articles").Select("id"), "Select")
	assertUsageError(t, hermes.NewQuery(nil).Delete("articles").Update("articles"), "Update")
}

func TestQueryWhereHelpers(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("articles").WhereNull("deleted").WhereNotNull("posted", "title")
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE (deleted IS NULL AND (posted IS NOT NULL AND title IS NOT NULL))")

	q = hermes.NewQuery(nil).From("articles").WhereInList("id", []int{1, 2}, false)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE id IN (:c0, :c1)")

	q = hermes.NewQuery(nil).From("articles").WhereInList("id", []int{}, true)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE 1 = 0")

	q = hermes.NewQuery(nil).From("articles").WhereNotInList("id", []int{3}, false)
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE id NOT IN (:c0)")

	q = hermes.NewQuery(nil).From("articles").WhereInList("id", []int{}, false)
	_, err := q.SQL(nil)

	var compileErr *hermes.CompilationError
	assert.Assert(t, errors.As(err, &compileErr))
	assert.Equal(t, compileErr.Clause, "where")
	assert.Equal(t, compileErr.Field, "id")
}

func TestQueryTypeConversionAtCompile(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).From("articles").Where(hermes.Conditions{"id": "abc"}, hermes.Types{"id": hermes.TypeInteger})

	// rendering does not convert values
	assert.Equal(t, compileSQL(t, q), "SELECT * FROM articles WHERE id = :c0")

	_, err := q.Compile()

	var conversionErr *hermes.TypeConversionError
	assert.Assert(t, errors.As(err, &conversionErr))
	assert.Equal(t, conversionErr.Type, hermes.TypeInteger)
}

func TestQueryCompileWith(t *testing.T) {
	t.Parallel()

	binder := hermes.NewValueBinder()
	binder.BindValue("outer", "")

	q := hermes.NewQuery(nil).From("articles").Where(hermes.Conditions{"id": 1})
	statement, err := q.CompileWith(binder)
	assert.NilError(t, err)
	assert.Equal(t, statement.SQL, "SELECT * FROM articles WHERE id = :c1")
	assert.DeepEqual(t, statement.Args(), []any{"outer", int64(1)})
}

func TestQueryClone(t *testing.T) {
	t.Parallel()

	subquery := hermes.NewQuery(nil).Select("article_id").From("comments")
	q := hermes.NewQuery(nil).
		Select("id").
		From("articles").
		Where(hermes.Conditions{"id IN": subquery}).
		Limit(5)

	clone := q.Clone()
	clone.Where(hermes.Conditions{"published": "Y"}).Limit(1).Select("title")
	subquery.Where(hermes.Conditions{"votes >": 1})

	assert.Assert(t, clone.ValueBinder() != q.ValueBinder())
	assert.Equal(t, compileSQL(t, q), "SELECT id FROM articles WHERE id IN (SELECT article_id FROM comments WHERE votes > :c0) LIMIT 5")
	assert.Equal(t, compileSQL(t, clone), "SELECT id, title FROM articles WHERE (id IN (SELECT article_id FROM comments) AND published = :c0) LIMIT 1")
}

func TestQueryClause(t *testing.T) {
	t.Parallel()

	q := hermes.NewQuery(nil).Select("id").From("articles").Where(hermes.Conditions{"id": 1})

	fields, err := q.Clause("select")
	assert.NilError(t, err)
	assert.DeepEqual(t, fields, []hermes.Aliased{{Value: "id"}})

	where, err := q.Clause("where")
	assert.NilError(t, err)
	assert.Equal(t, where.(*hermes.QueryExpression).Count(), 1)

	_, err = q.Clause("nope")
	var usageErr *hermes.UsageError
	assert.Assert(t, errors.As(err, &usageErr))
}

type fakeConnection struct {
	dialect    hermes.Dialect
	rows       []hermes.Row
	statements []hermes.CompiledStatement
}

func (connection *fakeConnection) Dialect() hermes.Dialect {
	return connection.dialect
}

func (connection *fakeConnection) Run(ctx context.Context, statement hermes.CompiledStatement) (hermes.StatementResult, error) {
	connection.statements = append(connection.statements, statement)

	rows := []hermes.Row{}
	for _, row := range connection.rows {
		copied := hermes.Row{}
		for column, value := range row {
			copied[column] = value
		}

		rows = append(rows, copied)
	}

	return hermes.NewRowsResult(rows, -1, 0), nil
}

func TestQueryExecute(t *testing.T) {
	t.Parallel()

	_, err := hermes.NewQuery(nil).From("articles").Execute(context.Background())
	assert.ErrorIs(t, err, hermes.ErrNoConnection)

	connection := &fakeConnection{
		dialect: pipeDialect{},
		rows: []hermes.Row{
			{"id": int64(1), "posted": "2024-01-02 03:04:05", "total": []byte("3")},
			{"id": int64(2), "posted": "2024-01-03 03:04:05", "total": []byte("4")},
		},
	}

	q := hermes.NewQuery(connection, hermes.WithTypeMap(hermes.NewTypeMap(map[string]string{"posted": hermes.TypeDateTime}))).
		Select("id", "posted", hermes.As(hermes.Functions().Count("*"), "total")).
		From("articles").
		Where(hermes.Conditions{"id >": 0}).
		Cache("articles").
		DecorateResults(func(row hermes.Row) hermes.Row {
			row["year"] = row["posted"].(time.Time).Year()
			return row
		})

	result, err := q.Execute(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, result.RowCount(), int64(2))

	row, found := result.Fetch()
	assert.Assert(t, found)
	assert.Equal(t, row["year"], 2024)
	assert.Equal(t, row["total"], int64(3))

	rest := result.FetchAll()
	assert.Equal(t, len(rest), 1)
	assert.Equal(t, rest[0]["id"], int64(2))

	_, found = result.Fetch()
	assert.Assert(t, !found)

	assert.Equal(t, len(connection.statements), 1)
	assert.Equal(t, connection.statements[0].CacheKey, "articles")
	assert.Equal(t, connection.statements[0].SQL, "SELECT id, posted, COUNT(*) AS total FROM articles WHERE id > :c0")

	q.ReplaceDecorators(nil)
	result, err = q.Execute(context.Background())
	assert.NilError(t, err)

	rows := result.FetchAll()
	_, hasYear := rows[0]["year"]
	assert.Assert(t, !hasYear)
	assert.Assert(t, rows[0]["posted"].(time.Time).Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestQueryExecuteTypeConversionFailure(t *testing.T) {
	t.Parallel()

	connection := &fakeConnection{
		dialect: pipeDialect{},
		rows:    []hermes.Row{{"n": "not-a-number"}},
	}

	q := hermes.NewQuery(connection, hermes.WithTypeMap(hermes.NewTypeMap(map[string]string{"n": hermes.TypeInteger}))).
		Select("n").
		From("numbers")

	result, err := q.Execute(context.Background())
	assert.Assert(t, result == nil)

	var conversionErr *hermes.TypeConversionError
	assert.Assert(t, errors.As(err, &conversionErr))
	assert.Equal(t, conversionErr.Type, hermes.TypeInteger)
	assert.Equal(t, conversionErr.Value, "not-a-number")

	connection.rows = []hermes.Row{{"n": "42"}, {"n": nil}}
	result, err = q.Execute(context.Background())
	assert.NilError(t, err)

	rows := result.FetchAll()
	assert.Equal(t, rows[0]["n"], int64(42))
	assert.Equal(t, rows[1]["n"], nil)
}
