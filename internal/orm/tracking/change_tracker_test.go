package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeTracker(t *testing.T) {
	original := map[string]interface{}{
		"id":     int64(7),
		"title":  "Hello",
		"status": "draft",
		"blob":   []byte("abc"),
	}
	current := map[string]interface{}{
		"title":  "Hello",
		"status": "publish",
		"blob":   []byte("abc"),
		"extra":  "new",
	}

	ct := NewChangeTracker(original, current)

	assert.True(t, ct.HasChanges())
	assert.Equal(t, []string{"extra", "status"}, ct.ChangedFields())
	assert.False(t, ct.Changed("title"))
	assert.False(t, ct.Changed("id"), "fields missing from current are untouched")
	assert.True(t, ct.ChangedFrom("status", "draft"))
	assert.True(t, ct.ChangedTo("status", "publish"))
	assert.False(t, ct.ChangedTo("status", "draft"))
	assert.Nil(t, ct.GetChange("extra").OldValue)
	assert.Equal(t, "draft", ct.PreviousValue("status"))
	assert.Equal(t, map[string]interface{}{"extra": "new", "status": "publish"}, ct.GetChangedData())
}

func TestChangeTracker_NoChanges(t *testing.T) {
	row := map[string]interface{}{"id": int64(1), "title": "Same"}
	ct := NewChangeTracker(row, map[string]interface{}{"title": "Same"})

	assert.False(t, ct.HasChanges())
	assert.Empty(t, ct.GetChangedData())
}

func TestChangeTracker_SetAndDiscard(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"modified": "2024-01-01 00:00:00", "title": "a"},
		map[string]interface{}{"title": "b"},
	)

	ct.Set("modified", "2024-01-01 00:00:00")
	assert.Equal(t, []string{"modified", "title"}, ct.ChangedFields())

	ct.Discard("title")
	assert.Equal(t, map[string]interface{}{"modified": "2024-01-01 00:00:00"}, ct.GetChangedData())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, ""))
	assert.True(t, Equal([]byte("x"), []byte("x")))
	assert.False(t, Equal(int64(1), 1))
	assert.True(t, Equal("a", "a"))
}
