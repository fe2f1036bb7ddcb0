package table

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablequery/internal/orm/cache"
	"github.com/conduit-lang/tablequery/internal/orm/crud"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

const (
	now     = "2024-06-15 12:00:00"
	earlier = "2024-01-01 00:00:00"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func testSchema(t *testing.T, meta bool) *schema.Schema {
	t.Helper()

	table := schema.Table{Name: "posts"}
	if meta {
		table.Meta = &schema.MetaTable{Name: "postmeta"}
	}

	s, err := schema.New(table, []schema.Column{
		{Name: "id", Type: "bigint", Unsigned: true, Primary: true},
		{Name: "title", Type: "varchar", Sortable: true},
		{Name: "status", Type: "varchar", Default: "draft", Sortable: true, In: true, NotIn: true},
		{Name: "slug", Type: "varchar", CacheKey: true},
		{Name: "created", Type: "datetime", Created: true, Sortable: true, DateQuery: true},
		{Name: "modified", Type: "datetime", Modified: true},
	})
	require.NoError(t, err)
	return s
}

type fixture struct {
	table *Table
	mock  sqlmock.Sqlmock
}

func setup(t *testing.T, meta bool, opts ...Option) fixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })

	tbl, err := New(Config{
		Schema:  testSchema(t, meta),
		Gateway: gateway.New(db, query.MySQL),
		Cache:   mem,
		Clock:   fixedClock,
	}, opts...)
	require.NoError(t, err)

	return fixture{table: tbl, mock: mock}
}

func postRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "status", "slug", "created", "modified"})
}

func TestQuery_EndToEndExampleHitsCacheOnRepeat(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	vars := query.Vars{
		"status__in": []interface{}{"active", "pending"},
		"orderby":    "created",
		"order":      "ASC",
		"number":     10,
	}

	f.mock.ExpectQuery("SELECT p.id FROM posts p WHERE p.status IN (?, ?) ORDER BY p.created ASC LIMIT ?").
		WithArgs("active", "pending", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(1)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id IN (?, ?)").
		WithArgs(int64(3), int64(1)).
		WillReturnRows(postRows().
			AddRow(int64(1), "First", "active", "first", earlier, earlier).
			AddRow(int64(3), "Third", "pending", "third", now, now))

	first, err := f.table.Query(ctx, vars)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, first.Items, 2)
	assert.Equal(t, int64(3), first.Items[0].ID())
	assert.Equal(t, int64(1), first.Items[1].ID())
	assert.Equal(t, []interface{}{int64(3), int64(1)}, first.IDs)
	assert.Equal(t, 2, first.FoundCount)
	require.NoError(t, f.mock.ExpectationsWereMet())

	// No further expectations: any statement now fails the test
	second, err := f.table.Query(ctx, vars)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.IDs, second.IDs)
	require.Len(t, second.Items, 2)
	for i := range first.Items {
		assert.Equal(t, first.Items[i].Map(), second.Items[i].Map())
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestQuery_WriteInvalidatesCachedQuery(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	vars := query.Vars{"status": "active"}
	idQuery := "SELECT p.id FROM posts p WHERE p.status = ? ORDER BY p.id DESC LIMIT ?"

	f.mock.ExpectQuery(idQuery).WithArgs("active", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "Old", "active", "first", earlier, earlier))

	_, err := f.table.Query(ctx, vars)
	require.NoError(t, err)

	// update_item fetches fresh and writes the diff
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "Old", "active", "first", earlier, earlier))
	f.mock.ExpectExec("UPDATE posts SET title = ?, modified = ? WHERE id = ?").
		WithArgs("New", now, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = f.table.UpdateItem(ctx, 1, map[string]interface{}{"title": "New"})
	require.NoError(t, err)

	f.mock.ExpectQuery(idQuery).WithArgs("active", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "New", "active", "first", earlier, now))

	res, err := f.table.Query(ctx, vars)
	require.NoError(t, err)
	assert.False(t, res.Cached, "queries cached before a write must miss")
	title, _ := res.Items[0].Get("title")
	assert.Equal(t, "New", title)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestQuery_Pagination(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(25).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery("SELECT COUNT(*) FROM posts p").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(101)))

	res, err := f.table.Query(context.Background(), query.Vars{"number": 25, "no_found_rows": false})
	require.NoError(t, err)
	assert.Equal(t, 101, res.FoundCount)
	assert.Equal(t, 5, res.MaxPages)
	assert.Empty(t, res.Items)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT COUNT(*) FROM posts p WHERE p.status = ?").WithArgs("publish").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := f.table.Count(ctx, query.Vars{"status": "publish"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = f.table.Count(ctx, query.Vars{"status": "publish"})
	require.NoError(t, err)
	assert.Equal(t, 42, n, "counts are cached")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCount_Grouped(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT p.status, COUNT(*) AS count FROM posts p GROUP BY p.status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("draft", int64(3)).
			AddRow("publish", int64(4)))

	res, err := f.table.Query(context.Background(), query.Vars{"count": true, "groupby": "status"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	assert.Equal(t, []map[string]interface{}{
		{"status": "draft", "count": int64(3)},
		{"status": "publish", "count": int64(4)},
	}, res.Groups)
}

func TestQuery_IDsProjection(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)).AddRow(int64(8)))

	res, err := f.table.Query(context.Background(), query.Vars{"fields": "ids", "number": 2})
	require.NoError(t, err)
	assert.Nil(t, res.Items)
	assert.Equal(t, []map[string]interface{}{{"id": int64(9)}, {"id": int64(8)}}, res.Records)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestQuery_FieldsProjection(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(9)).
		WillReturnRows(postRows().AddRow(int64(9), "Nine", "publish", "nine", earlier, earlier))

	res, err := f.table.Query(context.Background(), query.Vars{"fields": []interface{}{"title", "status"}, "number": 1})
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"title": "Nine", "status": "publish"}}, res.Records)
}

func TestQuery_PrimesMetaCache(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)).AddRow(int64(1)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id IN (?, ?)").WithArgs(int64(2), int64(1)).
		WillReturnRows(postRows().
			AddRow(int64(1), "One", "draft", "one", earlier, earlier).
			AddRow(int64(2), "Two", "draft", "two", earlier, earlier))
	f.mock.ExpectQuery("SELECT post_id, meta_key, meta_value FROM postmeta WHERE post_id IN (?, ?) ORDER BY meta_id").
		WithArgs(int64(2), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "meta_key", "meta_value"}).
			AddRow(int64(2), "color", "blue"))

	_, err := f.table.Query(ctx, nil)
	require.NoError(t, err)

	meta, err := f.table.GetMeta(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"blue"}, meta["color"])

	meta, err = f.table.GetMeta(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestQuery_SkipsCachesWhenAsked(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	vars := query.Vars{"update_item_cache": false, "update_meta_cache": false}

	for i := 0; i < 2; i++ {
		if i == 0 {
			f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(100).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		}
		f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
			WillReturnRows(postRows().AddRow(int64(1), "One", "draft", "one", earlier, earlier))
	}

	_, err := f.table.Query(ctx, vars)
	require.NoError(t, err)
	res, err := f.table.Query(ctx, vars)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetItemByID(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnRows(postRows().AddRow(int64(7), "Seven", "draft", "seven", earlier, earlier))

	it, err := f.table.GetItemByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), it.ID())

	again, err := f.table.GetItemByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, it.Map(), again.Map())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetItemByID_NotFound(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(8)).
		WillReturnRows(postRows())

	_, err := f.table.GetItemByID(context.Background(), 8)
	assert.ErrorIs(t, err, crud.ErrNotFound)
	assert.ErrorIs(t, f.table.LastError(), crud.ErrNotFound)

	_, err = f.table.GetItemByID(context.Background(), "")
	assert.ErrorIs(t, err, crud.ErrNotFound)
}

func TestGetItemByColumn(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT id FROM posts WHERE slug = ? LIMIT 1").WithArgs("seven").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnRows(postRows().AddRow(int64(7), "Seven", "draft", "seven", earlier, earlier))

	it, err := f.table.GetItemByColumn(ctx, "slug", "seven")
	require.NoError(t, err)
	assert.Equal(t, int64(7), it.ID())

	// Served from the by-slug group and the item cache
	again, err := f.table.GetItemByColumn(ctx, "slug", "seven")
	require.NoError(t, err)
	assert.Equal(t, int64(7), again.ID())
	assert.NoError(t, f.mock.ExpectationsWereMet())

	_, err = f.table.GetItemByColumn(ctx, "title", "Seven")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestGetItemByColumn_NotFound(t *testing.T) {
	f := setup(t, false)

	f.mock.ExpectQuery("SELECT id FROM posts WHERE slug = ? LIMIT 1").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := f.table.GetItemByColumn(context.Background(), "slug", "nope")
	assert.ErrorIs(t, err, crud.ErrNotFound)
}

func TestDeleteItem_EvictsCaches(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnRows(postRows().AddRow(int64(7), "Seven", "draft", "seven", earlier, earlier))
	_, err := f.table.GetItemByID(ctx, 7)
	require.NoError(t, err)

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnRows(postRows().AddRow(int64(7), "Seven", "draft", "seven", earlier, earlier))
	f.mock.ExpectExec("DELETE FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, f.table.DeleteItem(ctx, 7))

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(7)).
		WillReturnRows(postRows())
	_, err = f.table.GetItemByID(ctx, 7)
	assert.ErrorIs(t, err, crud.ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCopyItem_FailedMetadataStillInvalidates(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	before, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "First", "draft", "first", earlier, earlier))
	f.mock.ExpectQuery("SELECT meta_key, meta_value FROM postmeta WHERE post_id = ? ORDER BY meta_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"meta_key", "meta_value"}).AddRow("color", "red"))
	f.mock.ExpectExec("INSERT INTO posts (title, status, slug, created, modified) VALUES (?, ?, ?, ?, ?)").
		WithArgs("First", "draft", "copy", now, now).
		WillReturnResult(sqlmock.NewResult(2, 1))
	f.mock.ExpectExec("INSERT INTO postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)").
		WithArgs(int64(2), "color", "red").
		WillReturnError(assert.AnError)

	newID, err := f.table.CopyItem(ctx, 1, map[string]interface{}{"slug": "copy"})
	assert.ErrorIs(t, err, gateway.ErrGateway)
	assert.Equal(t, int64(2), newID)

	after, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "row 2 exists, cached queries must miss")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateItem_FailedMetadataStillInvalidates(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "Old", "draft", "first", earlier, earlier))
	_, err := f.table.GetItemByID(ctx, 1)
	require.NoError(t, err)

	before, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "Old", "draft", "first", earlier, earlier))
	f.mock.ExpectExec("UPDATE posts SET title = ?, modified = ? WHERE id = ?").
		WithArgs("New", now, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("DELETE FROM postmeta WHERE post_id = ? AND meta_key = ?").
		WithArgs(int64(1), "color").
		WillReturnError(assert.AnError)

	res, err := f.table.UpdateItem(ctx, 1, map[string]interface{}{"title": "New", "color": "red"})
	assert.ErrorIs(t, err, gateway.ErrGateway)
	require.NotNil(t, res)
	assert.True(t, res.Partial)

	after, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	// The cached row is gone, the next read sees the new title
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(1)).
		WillReturnRows(postRows().AddRow(int64(1), "New", "draft", "first", earlier, now))
	it, err := f.table.GetItemByID(ctx, 1)
	require.NoError(t, err)
	title, _ := it.Get("title")
	assert.Equal(t, "New", title)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateMeta_FailedReplaceClearsMetaCache(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	metaQuery := "SELECT meta_key, meta_value FROM postmeta WHERE post_id = ? ORDER BY meta_id"

	f.mock.ExpectQuery(metaQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"meta_key", "meta_value"}).AddRow("color", "blue"))
	meta, err := f.table.GetMeta(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"blue"}, meta["color"])

	before, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)

	f.mock.ExpectExec("DELETE FROM postmeta WHERE post_id = ? AND meta_key = ?").
		WithArgs(int64(1), "color").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)").
		WithArgs(int64(1), "color", "red").
		WillReturnError(assert.AnError)

	err = f.table.UpdateMeta(ctx, 1, "color", "red")
	assert.ErrorIs(t, err, gateway.ErrGateway)

	after, err := f.table.cache.LastChanged(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	// The old value was deleted, the cache must not keep serving it
	f.mock.ExpectQuery(metaQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"meta_key", "meta_value"}))
	meta, err = f.table.GetMeta(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddItem_FiresHooks(t *testing.T) {
	reg := hooks.NewRegistry()
	var added []interface{}
	reg.On(hooks.EventAdded, func(_ context.Context, e hooks.Event) error {
		added = append(added, e.ItemID)
		return nil
	})
	f := setup(t, false, WithHooks(reg))

	f.mock.ExpectExec("INSERT INTO posts (title, created, modified) VALUES (?, ?, ?)").
		WithArgs("Hello", now, now).
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := f.table.AddItem(context.Background(), map[string]interface{}{"title": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, []interface{}{int64(12)}, added)
	assert.Same(t, reg, f.table.Hooks())
}

func TestNew_ConfigurationErrorRefusesEverything(t *testing.T) {
	tbl, err := New(Config{})
	require.ErrorIs(t, err, schema.ErrConfiguration)
	require.NotNil(t, tbl)

	ctx := context.Background()
	_, err = tbl.Query(ctx, nil)
	assert.ErrorIs(t, err, schema.ErrConfiguration)
	_, err = tbl.GetItemByID(ctx, 1)
	assert.ErrorIs(t, err, schema.ErrConfiguration)
	_, err = tbl.AddItem(ctx, map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, schema.ErrConfiguration)
	assert.ErrorIs(t, tbl.DeleteItem(ctx, 1), schema.ErrConfiguration)
	assert.ErrorIs(t, tbl.LastError(), schema.ErrConfiguration)

	assert.False(t, tbl.Lenient().DeleteItem(ctx, 1))
	assert.Nil(t, tbl.Hooks())
}

func TestLenient(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	l := f.table.Lenient()

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(100).
		WillReturnError(assert.AnError)

	assert.Nil(t, l.Query(ctx, nil))
	assert.ErrorIs(t, f.table.LastError(), gateway.ErrGateway)

	f.mock.ExpectQuery("SELECT COUNT(*) FROM posts p").WillReturnError(assert.AnError)
	assert.Equal(t, 0, l.Count(ctx, nil))

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(4)).WillReturnRows(postRows())
	_, ok := l.GetItemByID(ctx, 4)
	assert.False(t, ok)

	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(4)).WillReturnRows(postRows())
	assert.False(t, l.UpdateItem(ctx, 4, map[string]interface{}{"title": "x"}))

	_, ok = l.GetItemByColumn(ctx, "status", "draft")
	assert.False(t, ok)
}

func TestLenient_Projections(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	l := f.table.Lenient()

	f.mock.ExpectQuery("SELECT p.id FROM posts p ORDER BY p.id DESC LIMIT ?").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)).AddRow(int64(8)))

	ids := query.Vars{"fields": "ids", "number": 2}
	assert.Equal(t, []map[string]interface{}{{"id": int64(9)}, {"id": int64(8)}}, l.Records(ctx, ids))

	// Served from the cache, still a success without items
	got := l.Query(ctx, ids)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	f.mock.ExpectQuery("SELECT p.id FROM posts p WHERE p.status = ? ORDER BY p.id DESC LIMIT ?").WithArgs("publish", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	f.mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WithArgs(int64(9)).
		WillReturnRows(postRows().AddRow(int64(9), "Nine", "publish", "nine", earlier, earlier))

	named := query.Vars{"fields": []interface{}{"title"}, "status": "publish", "number": 1}
	assert.Equal(t, []map[string]interface{}{{"title": "Nine"}}, l.Records(ctx, named))

	// Full items come back as records too
	records := l.Records(ctx, query.Vars{"status": "publish", "number": 1})
	require.Len(t, records, 1)
	assert.Equal(t, "Nine", records[0]["title"])

	f.mock.ExpectQuery("SELECT p.id FROM posts p WHERE p.status = ? ORDER BY p.id DESC LIMIT ?").WithArgs("draft", 100).
		WillReturnError(assert.AnError)
	assert.Nil(t, l.Records(ctx, query.Vars{"status": "draft"}))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestNew_WithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	tbl, err := New(Config{Schema: testSchema(t, false), Gateway: gateway.New(db, query.MySQL)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT COUNT(*) FROM posts p").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	}
	for i := 0; i < 2; i++ {
		n, err := tbl.Count(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
