package database_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermesservices/database"
	"gotest.tools/v3/assert"
)

var postedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func articleTypes() hermes.QueryOption {
	return hermes.WithTypeMap(hermes.NewTypeMap(map[string]string{
		"id":        hermes.TypeInteger,
		"author_id": hermes.TypeInteger,
		"posted":    hermes.TypeDateTime,
	}))
}

func articlesTable(driver database.Driver) string {
	switch driver.Name() {
	case "mysql":
		return "CREATE TABLE articles (id INTEGER PRIMARY KEY AUTO_INCREMENT, title VARCHAR(255) NOT NULL, author_id INTEGER, published VARCHAR(1), posted DATETIME)"
	case "postgres":
		return "CREATE TABLE articles (id SERIAL PRIMARY KEY, title VARCHAR(255) NOT NULL, author_id INTEGER, published VARCHAR(1), posted TIMESTAMP)"
	}

	return "CREATE TABLE articles (id INTEGER PRIMARY KEY AUTOINCREMENT, title VARCHAR(255) NOT NULL, author_id INTEGER, published VARCHAR(1), posted DATETIME)"
}

func newService(t *testing.T, driver database.Driver, configFuncs ...database.ServiceConfigFunc) *database.Service {
	t.Helper()

	configFuncs = append([]database.ServiceConfigFunc{
		database.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		database.WithPostConnectFunc(func(db *sql.DB) error {
			_, err := db.Exec(articlesTable(driver))
			return err
		}),
	}, configFuncs...)

	service, err := database.New(driver, configFuncs...)
	assert.NilError(t, err)
	t.Cleanup(func() {
		_ = service.Close()
	})

	seedArticles(t, service)

	return service
}

// seedArticles inserts rows 1, 2 and 3 posted an hour apart around postedAt.
func seedArticles(t *testing.T, service *database.Service) {
	t.Helper()

	result, err := service.NewQuery(articleTypes()).
		Insert("articles", []string{"id", "title", "author_id", "published", "posted"}).
		Values([]map[string]any{
			{"id": 1, "title": "first", "author_id": 1, "published": "Y", "posted": postedAt.Add(-time.Hour)},
			{"id": 2, "title": "second", "author_id": 1, "published": "Y", "posted": postedAt},
			{"id": 3, "title": "third", "author_id": 2, "published": "N", "posted": postedAt.Add(time.Hour)},
		}).
		Execute(t.Context())
	assert.NilError(t, err)
	assert.Equal(t, result.RowCount(), int64(3))
}

func fetchIDs(t *testing.T, q *hermes.Query) []int64 {
	t.Helper()

	result, err := q.Execute(t.Context())
	assert.NilError(t, err)

	ids := []int64{}
	for _, row := range result.FetchAll() {
		ids = append(ids, row["id"].(int64))
	}

	return ids
}

func testSuite(t *testing.T, driver database.Driver, configFuncs ...database.ServiceConfigFunc) {
	service := newService(t, driver, configFuncs...)
	assert.NilError(t, service.Ping())
	assert.Equal(t, service.Dialect().Name(), driver.Name())

	articles := func() *hermes.Query {
		return service.NewQuery(articleTypes()).Select("id").From("articles").Order("id")
	}

	{ // Boolean nesting: or-ing the root then and-ing wraps the whole tree
		ids := fetchIDs(t, articles().
			Where(hermes.Conditions{"id": 2, "id >": 1}).
			OrWhere(hermes.Conditions{"id": 1}).
			AndWhere(hermes.Conditions{"posted >=": postedAt}))
		assert.DeepEqual(t, ids, []int64{2})

		ids = fetchIDs(t, articles().
			Where(hermes.Conditions{"id": 2, "id >": 1}).
			OrWhere(hermes.Conditions{"id": 1}).
			AndWhere(hermes.Conditions{"posted >=": postedAt.Add(-time.Hour)}))
		assert.DeepEqual(t, ids, []int64{1, 2})
	}

	{ // Negation
		q := articles()
		q.Where(hermes.Not(q.NewExpr(hermes.Conditions{"id": 2, "posted": postedAt})))
		assert.DeepEqual(t, fetchIDs(t, q), []int64{1, 3})
	}

	{ // IN normalization and empty lists
		assert.DeepEqual(t, fetchIDs(t, articles().Where(hermes.Conditions{"id": []int{1, 3}})), []int64{1, 3})
		assert.DeepEqual(t, fetchIDs(t, articles().Where(hermes.Conditions{"id !=": []int{1, 3}})), []int64{2})
		assert.DeepEqual(t, fetchIDs(t, articles().WhereInList("id", []int{}, true)), []int64{})
	}

	{ // Subquery
		published := service.NewQuery().Select("id").From("articles").Where(hermes.Conditions{"published": "Y"})
		assert.DeepEqual(t, fetchIDs(t, articles().Where(hermes.Conditions{"id IN": published})), []int64{1, 2})
	}

	{ // Union keeps duplicates only with UNION ALL
		titles := func() *hermes.Query {
			return service.NewQuery().Select("title").From("articles")
		}
		firstTwo := func() *hermes.Query {
			return titles().Where(hermes.Conditions{"id <": 3})
		}

		result, err := titles().Union(firstTwo()).Execute(t.Context())
		assert.NilError(t, err)
		assert.Assert(t, len(result.FetchAll()) <= 5)

		result, err = titles().UnionAll(firstTwo()).Execute(t.Context())
		assert.NilError(t, err)

		all := []string{}
		for _, row := range result.FetchAll() {
			all = append(all, row["title"].(string))
		}

		assert.DeepEqual(t, all,
			[]string{"first", "first", "second", "second", "third"},
			cmpopts.SortSlices(func(a, b string) bool { return a < b }),
		)
	}

	{ // Functions, aliases and result casting
		f := hermes.Functions()
		row, err := database.First(t.Context(), service.NewQuery(articleTypes()).
			Select(
				hermes.As(f.Count("*"), "total"),
				hermes.As(f.Max("posted"), "latest"),
			).
			From("articles").
			Where(hermes.Conditions{"author_id": 1}))
		assert.NilError(t, err)
		assert.Equal(t, row["total"], int64(2))

		row, err = database.First(t.Context(), service.NewQuery(articleTypes()).
			Select(hermes.As(f.Concat(hermes.Literal("title"), ": draft"), "label"), "posted").
			From("articles").
			Where(hermes.Conditions{"id": 1}))
		assert.NilError(t, err)
		assert.Equal(t, row["label"], "first: draft")
		assert.Assert(t, row["posted"].(time.Time).Equal(postedAt.Add(-time.Hour)))
	}

	{ // Group and having
		result, err := service.NewQuery(articleTypes()).
			Select("author_id", hermes.As(hermes.Functions().Count("*"), "total")).
			From("articles").
			Group("author_id").
			Having(hermes.Raw("COUNT(*) > 1")).
			Execute(t.Context())
		assert.NilError(t, err)

		rows := result.FetchAll()
		assert.Equal(t, len(rows), 1)
		assert.Equal(t, rows[0]["author_id"], int64(1))
	}

	{ // Limit and offset
		assert.DeepEqual(t, fetchIDs(t, articles().Limit(1).Offset(1)), []int64{2})
		assert.DeepEqual(t, fetchIDs(t, articles().Offset(2)), []int64{3})
		assert.DeepEqual(t, fetchIDs(t, articles().Page(2, 2)), []int64{3})
	}

	{ // Update
		result, err := service.NewQuery(articleTypes()).
			Update("articles").
			Set("title", "third, revised").
			Where(hermes.Conditions{"id": 3}).
			Execute(t.Context())
		assert.NilError(t, err)
		assert.Equal(t, result.RowCount(), int64(1))

		row, err := database.First(t.Context(), service.NewQuery().Select("title").From("articles").Where(hermes.Conditions{"id": 3}))
		assert.NilError(t, err)
		assert.Equal(t, row["title"], "third, revised")
	}

	{ // Delete
		result, err := service.NewQuery(articleTypes()).
			Delete("articles").
			Where(hermes.Conditions{"id": 3}).
			Execute(t.Context())
		assert.NilError(t, err)
		assert.Equal(t, result.RowCount(), int64(1))

		_, err = database.First(t.Context(), articles().Where(hermes.Conditions{"id": 3}))
		assert.ErrorIs(t, err, database.ErrNoRows)
	}

	{ // Blank statements
		_, err := service.Run(context.Background(), hermes.CompiledStatement{SQL: "  "})
		assert.ErrorIs(t, err, database.ErrBlankQuery)
	}
}
