package item

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablequery/internal/orm/access"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.New(schema.Table{Name: "posts"}, []schema.Column{
		{Name: "id", Type: "bigint", Unsigned: true, Primary: true},
		{Name: "title", Type: "varchar"},
		{Name: "status", Type: "varchar", Default: "draft"},
		{Name: "price", Type: "decimal", Unsigned: true},
		{Name: "parent", Type: "bigint", AllowNull: true},
		{Name: "secret", Type: "varchar", Capabilities: map[schema.Operation]string{schema.OpSelect: "read_secret"}},
		{Name: "created", Type: "datetime", Created: true},
	})
	require.NoError(t, err)
	return s
}

func setupShaper(t *testing.T, policy access.Policy, dialect query.Dialect) (*Shaper, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewShaper(testSchema(t), policy, gateway.New(db, dialect), WithClock(fixedClock)), mock
}

func TestShapeRow_ValidatesEveryField(t *testing.T) {
	sh, _ := setupShaper(t, nil, query.MySQL)

	it := sh.ShapeRow(map[string]interface{}{
		"id":      "7",
		"title":   "Hello",
		"status":  nil,
		"price":   "-12.345",
		"parent":  nil,
		"secret":  "s3cr3t",
		"created": "garbage",
		"junk":    "dropped",
	}, schema.OpSelect)

	assert.Equal(t, []string{"id", "title", "status", "price", "parent", "secret", "created"}, it.Fields())
	assert.Equal(t, int64(7), it.ID())
	assert.Equal(t, map[string]interface{}{
		"id":      int64(7),
		"title":   "Hello",
		"status":  "draft",
		"price":   "0",
		"parent":  nil,
		"secret":  "s3cr3t",
		"created": "0000-00-00 00:00:00",
	}, it.Map())
}

func TestShapeRow_RedactsDeniedFields(t *testing.T) {
	sh, _ := setupShaper(t, access.NewCapabilityPolicy(testSchema(t)), query.MySQL)

	it := sh.ShapeRow(map[string]interface{}{"id": int64(1), "secret": "s3cr3t"}, schema.OpSelect)

	v, ok := it.Get("secret")
	assert.True(t, ok, "denied fields stay on items as null")
	assert.Nil(t, v)
}

func TestShapeID_FetchesFresh(t *testing.T) {
	sh, mock := setupShaper(t, nil, query.Postgres)

	mock.ExpectQuery("SELECT * FROM posts WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(7), "Hello"))
	mock.ExpectQuery("SELECT * FROM posts WHERE id = $1").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	it, ok, err := sh.ShapeID(context.Background(), "7", schema.OpSelect)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", it.Map()["title"])

	_, ok, err = sh.ShapeID(context.Background(), 8, schema.OpSelect)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_Many(t *testing.T) {
	sh, mock := setupShaper(t, nil, query.MySQL)

	mock.ExpectQuery("SELECT * FROM posts WHERE id IN (?, ?, ?)").
		WithArgs(int64(3), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))

	rows, err := sh.Fetch(context.Background(), []interface{}{3, "1", int64(2)})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Contains(t, rows, "1")
	assert.Contains(t, rows, "3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_Batches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	sh := NewShaper(testSchema(t), nil, gateway.New(db, query.SQLite), WithBatchSize(2))

	mock.ExpectQuery("SELECT * FROM posts WHERE id IN (?, ?)").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery("SELECT * FROM posts WHERE id IN (?, ?)").
		WithArgs(int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	rows, err := sh.Fetch(context.Background(), []interface{}{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.NotContains(t, rows, "3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatches(t *testing.T) {
	ids := []interface{}{1, 2, 3, 4, 5}

	assert.Equal(t, [][]interface{}{{1, 2}, {3, 4}, {5}}, Batches(ids, 2))
	assert.Equal(t, [][]interface{}{ids}, Batches(ids, 0))
	assert.Empty(t, Batches(nil, 2))

	first := Batches(ids, 2)[0]
	first = append(first, 99)
	assert.Equal(t, 3, ids[2], "appending to a batch must not touch the source")
}

func TestFetch_GatewayError(t *testing.T) {
	sh, mock := setupShaper(t, nil, query.MySQL)
	mock.ExpectQuery("SELECT * FROM posts WHERE id = ?").WillReturnError(assert.AnError)

	_, _, err := sh.ShapeID(context.Background(), 1, schema.OpSelect)
	assert.ErrorIs(t, err, gateway.ErrGateway)
}

func TestFetch_NoGateway(t *testing.T) {
	sh := NewShaper(testSchema(t), nil, nil)
	_, err := sh.Fetch(context.Background(), []interface{}{1})
	assert.ErrorIs(t, err, gateway.ErrGateway)
}

func TestProject(t *testing.T) {
	sh, _ := setupShaper(t, access.NewCapabilityPolicy(testSchema(t)), query.MySQL)
	items := sh.ShapeRows([]map[string]interface{}{
		{"id": int64(1), "title": "One", "secret": "x"},
		{"id": int64(2), "title": "Two", "secret": "y"},
	}, schema.OpSelect)

	assert.Equal(t, []map[string]interface{}{{"id": int64(1)}, {"id": int64(2)}},
		sh.Project(items, []string{"ids"}))
	assert.Equal(t, []map[string]interface{}{{"title": "One"}, {"title": "Two"}},
		sh.Project(items, []string{"title", "secret", "missing"}))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "7", Key(int64(7)))
	assert.Equal(t, "7", Key("7"))
	assert.Equal(t, "7", Key([]byte("7")))
	assert.Equal(t, Key(7), Key(uint8(7)))
}
