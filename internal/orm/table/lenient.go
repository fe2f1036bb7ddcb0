package table

import (
	"context"

	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/query"
)

// Lenient reports failures as false or empty values. The error behind a
// failure stays available through LastError.
type Lenient struct {
	t *Table
}

// Lenient returns the boolean-success form of t
func (t *Table) Lenient() *Lenient {
	return &Lenient{t: t}
}

// Query returns the shaped items, or nil on failure. A successful query
// never returns nil; a "fields" projection yields no items, read it with
// Records.
func (l *Lenient) Query(ctx context.Context, vars query.Vars) []*item.Item {
	res, err := l.t.Query(ctx, vars)
	if err != nil {
		return nil
	}
	if res.Items == nil {
		return []*item.Item{}
	}
	return res.Items
}

// Records returns the result as keyed records, or nil on failure. A
// "fields" query returns its projection; other queries return every item
// as a record.
func (l *Lenient) Records(ctx context.Context, vars query.Vars) []map[string]interface{} {
	res, err := l.t.Query(ctx, vars)
	if err != nil {
		return nil
	}
	if res.Records != nil {
		return res.Records
	}
	out := make([]map[string]interface{}, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Map()
	}
	return out
}

// Count returns the number of matching items, 0 on failure
func (l *Lenient) Count(ctx context.Context, vars query.Vars) int {
	n, err := l.t.Count(ctx, vars)
	if err != nil {
		return 0
	}
	return n
}

// GetItemByID returns the item, or nil and false
func (l *Lenient) GetItemByID(ctx context.Context, id interface{}) (*item.Item, bool) {
	it, err := l.t.GetItemByID(ctx, id)
	return it, err == nil
}

// GetItemByColumn returns the item, or nil and false
func (l *Lenient) GetItemByColumn(ctx context.Context, column string, value interface{}) (*item.Item, bool) {
	it, err := l.t.GetItemByColumn(ctx, column, value)
	return it, err == nil
}

// AddItem returns the new id, or nil and false
func (l *Lenient) AddItem(ctx context.Context, data map[string]interface{}) (interface{}, bool) {
	id, err := l.t.AddItem(ctx, data)
	if err != nil {
		return nil, false
	}
	return id, true
}

// UpdateItem reports whether the update was saved
func (l *Lenient) UpdateItem(ctx context.Context, id interface{}, data map[string]interface{}) bool {
	_, err := l.t.UpdateItem(ctx, id, data)
	return err == nil
}

// DeleteItem reports whether the item was deleted
func (l *Lenient) DeleteItem(ctx context.Context, id interface{}) bool {
	return l.t.DeleteItem(ctx, id) == nil
}

// CopyItem returns the id of the copy, or nil and false
func (l *Lenient) CopyItem(ctx context.Context, id interface{}, overrides map[string]interface{}) (interface{}, bool) {
	newID, err := l.t.CopyItem(ctx, id, overrides)
	if err != nil {
		return nil, false
	}
	return newID, true
}
