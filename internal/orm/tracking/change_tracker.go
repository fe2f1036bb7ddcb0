// Package tracking diffs an item's stored values against incoming values so
// updates only write the columns that changed.
package tracking

import (
	"bytes"
	"reflect"
	"sort"
)

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker holds the changes between an original and a current row.
// Fields missing from current are untouched, not removed.
type ChangeTracker struct {
	original map[string]interface{}
	current  map[string]interface{}
	changes  map[string]*FieldChange
}

// NewChangeTracker compares current against original
func NewChangeTracker(original, current map[string]interface{}) *ChangeTracker {
	ct := &ChangeTracker{
		original: copyMap(original),
		current:  copyMap(current),
		changes:  make(map[string]*FieldChange),
	}
	ct.computeChanges()
	return ct
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (ct *ChangeTracker) computeChanges() {
	for field, newValue := range ct.current {
		oldValue, had := ct.original[field]
		if !had || !Equal(oldValue, newValue) {
			ct.changes[field] = &FieldChange{
				Field:    field,
				OldValue: oldValue,
				NewValue: newValue,
			}
		}
	}
}

// Equal compares two stored values
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.([]byte); ok {
		if bb, ok := b.([]byte); ok {
			return bytes.Equal(ab, bb)
		}
	}
	return reflect.DeepEqual(a, b)
}

// Changed returns true if the field changed
func (ct *ChangeTracker) Changed(field string) bool {
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed fields in name order
func (ct *ChangeTracker) ChangedFields() []string {
	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// PreviousValue returns the original value of a field
func (ct *ChangeTracker) PreviousValue(field string) interface{} {
	return ct.original[field]
}

// GetChange returns the FieldChange for a field, or nil if unchanged
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	return ct.changes[field]
}

// HasChanges returns true if any field changed
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.changes) > 0
}

// ChangedTo returns true if the field changed to value
func (ct *ChangeTracker) ChangedTo(field string, value interface{}) bool {
	change, ok := ct.changes[field]
	return ok && Equal(change.NewValue, value)
}

// ChangedFrom returns true if the field changed from value
func (ct *ChangeTracker) ChangedFrom(field string, value interface{}) bool {
	change, ok := ct.changes[field]
	return ok && Equal(change.OldValue, value)
}

// Set records a value that is written whether or not it changed, such as
// a refreshed modified timestamp
func (ct *ChangeTracker) Set(field string, value interface{}) {
	ct.current[field] = value
	ct.changes[field] = &FieldChange{
		Field:    field,
		OldValue: ct.original[field],
		NewValue: value,
	}
}

// Discard forgets a change
func (ct *ChangeTracker) Discard(field string) {
	delete(ct.changes, field)
}

// GetChangedData returns the changed fields with their new values
func (ct *ChangeTracker) GetChangedData() map[string]interface{} {
	result := make(map[string]interface{}, len(ct.changes))
	for field, change := range ct.changes {
		result[field] = change.NewValue
	}
	return result
}
