package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name string
		want Dialect
	}{
		{"", MySQL},
		{"mysql", MySQL},
		{"MariaDB", MySQL},
		{"postgres", Postgres},
		{"pgx", Postgres},
		{"sqlite3", SQLite},
	}

	for _, tt := range tests {
		d, err := DialectByName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, d, tt.name)
	}

	_, err := DialectByName("oracle")
	assert.Error(t, err)
}

func TestPostgresRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", Postgres.Rebind("a = ? AND b IN (?, ?)"))
	assert.Equal(t, "a = ?", MySQL.Rebind("a = ?"))
	assert.Equal(t, "a = ?", SQLite.Rebind("a = ?"))
}

func TestNormalizeCast(t *testing.T) {
	tests := map[string]string{
		"":              "CHAR",
		"numeric":       "NUMERIC",
		" signed ":      "SIGNED",
		"DECIMAL(10,2)": "DECIMAL(10,2)",
		"CHAR(20)":      "CHAR",
		"text":          "CHAR",
		"SIGNED; DROP":  "CHAR",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeCast(in), in)
	}
}

func TestCast(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		castType string
		want     string
	}{
		{MySQL, "CHAR", "v"},
		{MySQL, "NUMERIC", "CAST(v AS SIGNED)"},
		{MySQL, "NUMERIC(10,2)", "CAST(v AS DECIMAL(10,2))"},
		{MySQL, "DATE", "CAST(v AS DATE)"},
		{Postgres, "SIGNED", "CAST(v AS BIGINT)"},
		{Postgres, "DATETIME", "CAST(v AS TIMESTAMP)"},
		{Postgres, "DECIMAL(5,1)", "CAST(v AS NUMERIC(5,1))"},
		{SQLite, "UNSIGNED", "CAST(v AS INTEGER)"},
		{SQLite, "DATETIME", "v"},
		{SQLite, "DECIMAL(5,1)", "CAST(v AS NUMERIC)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dialect.Cast("v", tt.castType), tt.dialect.Name()+" "+tt.castType)
	}
}

func TestOrderByList(t *testing.T) {
	assert.Equal(t, "FIELD(p.id, ?, ?)", MySQL.OrderByList("p.id", 2))
	assert.Equal(t, "CASE p.id WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END", Postgres.OrderByList("p.id", 2))
	assert.Equal(t, "CASE p.id WHEN ? THEN 0 ELSE 1 END", SQLite.OrderByList("p.id", 1))
}

func TestReturning(t *testing.T) {
	assert.Equal(t, " RETURNING id", Postgres.Returning("id"))
	assert.Empty(t, MySQL.Returning("id"))
	assert.Empty(t, SQLite.Returning("id"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, MySQL.EscapeLike("100%"))
	assert.Equal(t, `a\_b`, MySQL.EscapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, MySQL.EscapeLike(`c:\dir`))
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"=", OpEqual},
		{"<>", OpNotEqual},
		{"!=", OpNotEqual},
		{"not  in", OpNotIn},
		{" like ", OpLike},
		{"NOT EXISTS", OpNotExists},
		{"rlike", OpRLike},
	}

	for _, tt := range tests {
		op, ok := ParseOperator(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, op, tt.in)
	}

	_, ok := ParseOperator("~=")
	assert.False(t, ok)
}

func TestOperatorPredicates(t *testing.T) {
	assert.True(t, OpNotLike.IsNegative())
	assert.False(t, OpRLike.IsNegative())
	assert.Equal(t, OpLike, OpNotLike.Positive())
	assert.Equal(t, OpExists, OpNotExists.Positive())
	assert.Equal(t, OpGreaterThan, OpGreaterThan.Positive())
	assert.True(t, OpNotIn.IsList())
	assert.True(t, OpNotBetween.IsRange())
	assert.True(t, OpRLike.IsRegexp())
	assert.Equal(t, "NOT BETWEEN", OpNotBetween.String())
	assert.Equal(t, "UNKNOWN", Operator(99).String())
}
