package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

var fixedNow validation.Clock = func() time.Time {
	return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
}

func intPtr(i int) *int { return &i }

func TestColumn_Kind(t *testing.T) {
	assert.Equal(t, KindInt, (&Column{Type: "bigint"}).Kind())
	assert.Equal(t, KindFloat, (&Column{Type: "decimal"}).Kind())
	assert.Equal(t, KindFloat, (&Column{Type: "double"}).Kind())
	assert.Equal(t, KindString, (&Column{Type: "varchar"}).Kind())
	assert.Equal(t, KindString, (&Column{Type: "bigint", Pattern: KindString}).Kind())
	assert.Equal(t, "%d", KindInt.String())
}

func TestColumn_ValidateDecimal(t *testing.T) {
	price := &Column{Name: "price", Type: "decimal", Decimals: intPtr(2), Unsigned: true, Default: 0}

	assert.Equal(t, "12.35", price.Validate("12.345"))
	assert.Equal(t, "0.00", price.Validate("-5"))
	assert.Equal(t, "0.00", price.Validate("abc"))

	signed := &Column{Name: "delta", Type: "decimal", Decimals: intPtr(2)}
	assert.Equal(t, "-12.35", signed.Validate("-12.345"))

	inferred := &Column{Name: "ratio", Type: "decimal"}
	assert.Equal(t, "3.1415", inferred.Validate("3.1415"))
}

func TestColumn_ValidateInt(t *testing.T) {
	col := &Column{Name: "count", Type: "int", Unsigned: true, Default: 10}

	assert.Equal(t, int64(42), col.Validate("42"))
	assert.Equal(t, int64(10), col.Validate(-1))
	assert.Equal(t, int64(10), col.Validate("nope"))
}

func TestColumn_ValidateNull(t *testing.T) {
	nullable := &Column{Name: "parent", Type: "bigint", AllowNull: true}
	assert.Nil(t, nullable.Validate(nil))

	strict := &Column{Name: "parent", Type: "bigint"}
	assert.Equal(t, int64(0), strict.Validate(nil))
}

func TestColumn_ValidateDatetime(t *testing.T) {
	col := &Column{Name: "created", Type: "datetime", Default: validation.CurrentTimestamp}

	assert.Equal(t, "2024-03-01 08:30:00", col.ValidateAt("garbage", fixedNow))
	assert.Equal(t, "2023-01-02 03:04:05", col.ValidateAt("2023-01-02 03:04:05", fixedNow))
	assert.Equal(t, "2024-03-01 08:30:00", col.ValidateAt(validation.CurrentTimestamp, fixedNow))

	date := &Column{Name: "day", Type: "date"}
	assert.Equal(t, "2023-01-02", date.ValidateAt("2023-01-02 03:04:05", fixedNow))
	assert.Equal(t, "0000-00-00", date.ValidateAt("garbage", fixedNow))
}

func TestColumn_ValidateUUID(t *testing.T) {
	col := &Column{Name: "uuid", Type: "varchar", UUID: true}

	generated, ok := col.Validate("").(string)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(generated, validation.UUIDPrefix))
	assert.Equal(t, generated, col.Validate(generated))
}

func TestColumn_CustomValidator(t *testing.T) {
	col := &Column{
		Name: "slug",
		Type: "varchar",
		Validator: func(v interface{}) interface{} {
			s, _ := validation.String(v)
			return strings.ToLower(s)
		},
	}
	assert.Equal(t, "hello", col.Validate("HeLLo"))
}

func TestColumn_IsDefault(t *testing.T) {
	status := &Column{Name: "status", Type: "varchar", Default: "draft"}
	assert.True(t, status.IsDefault(nil))
	assert.True(t, status.IsDefault(""))
	assert.True(t, status.IsDefault("draft"))
	assert.False(t, status.IsDefault("publish"))

	created := &Column{Name: "created", Type: "datetime", Default: validation.CurrentTimestamp}
	assert.True(t, created.IsDefault(validation.ZeroDatetime))
	assert.False(t, created.IsDefault("2024-01-01 00:00:00"))
}

func TestColumn_BindValue(t *testing.T) {
	assert.Equal(t, int64(5), (&Column{Type: "int"}).BindValue("5"))
	assert.Equal(t, 2.5, (&Column{Type: "float"}).BindValue("2.5"))
	assert.Equal(t, "5", (&Column{Type: "varchar"}).BindValue(5))
}
