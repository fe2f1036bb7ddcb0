package table

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/crud"
)

// AddItem inserts an item and returns its id
func (t *Table) AddItem(ctx context.Context, data map[string]interface{}) (interface{}, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	id, err := t.ops.Add(ctx, data)
	if id != nil {
		t.changed(ctx)
	}
	if err != nil {
		return id, t.fail(err)
	}
	return id, nil
}

// UpdateItem writes the changed columns of an item
func (t *Table) UpdateItem(ctx context.Context, id interface{}, data map[string]interface{}) (*crud.UpdateResult, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	// A result comes back whenever something was written, even alongside
	// an error, and the caches must forget the old state either way
	res, err := t.ops.Update(ctx, id, data)
	if res != nil {
		t.forgetItem(ctx, id, nil)
		for field, change := range res.Changes {
			if col, ok := t.schema.Column(field); ok && col.CacheKey && !col.Primary {
				t.forgetLookup(ctx, col.Name, col.BindValue(change[0]))
			}
		}
		if len(res.Meta) > 0 || res.Partial {
			t.forgetMeta(ctx, id)
		}
		t.changed(ctx)
	}
	if err != nil {
		return res, t.fail(err)
	}
	return res, nil
}

// DeleteItem removes an item and its metadata
func (t *Table) DeleteItem(ctx context.Context, id interface{}) error {
	if err := t.ready(); err != nil {
		return err
	}

	row, err := t.ops.Delete(ctx, id)
	if row != nil {
		t.forgetItem(ctx, id, row)
		t.forgetMeta(ctx, id)
		t.changed(ctx)
	}
	return t.fail(err)
}

// CopyItem adds a copy of an item with overrides applied
func (t *Table) CopyItem(ctx context.Context, id interface{}, overrides map[string]interface{}) (interface{}, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	newID, err := t.ops.Copy(ctx, id, overrides)
	if newID != nil {
		t.changed(ctx)
	}
	if err != nil {
		return newID, t.fail(err)
	}
	return newID, nil
}

// AddMeta stores one more metadata value under key
func (t *Table) AddMeta(ctx context.Context, id interface{}, key string, value interface{}) error {
	return t.metaWrite(ctx, id, func() error { return t.ops.AddMeta(ctx, id, key, value) })
}

// UpdateMeta replaces the metadata values under key
func (t *Table) UpdateMeta(ctx context.Context, id interface{}, key string, value interface{}) error {
	return t.metaWrite(ctx, id, func() error { return t.ops.UpdateMeta(ctx, id, key, value) })
}

// DeleteMeta removes the metadata values under key
func (t *Table) DeleteMeta(ctx context.Context, id interface{}, key string) error {
	return t.metaWrite(ctx, id, func() error { return t.ops.DeleteMeta(ctx, id, key) })
}

// metaWrite runs a metadata write. Meta filters take part in queries, so
// the token is bumped as for any other write. A failed replace may already
// have deleted the old values, so the caches are cleared on failure too.
func (t *Table) metaWrite(ctx context.Context, id interface{}, write func() error) error {
	if err := t.ready(); err != nil {
		return err
	}
	err := write()
	t.forgetMeta(ctx, id)
	t.changed(ctx)
	return t.fail(err)
}

// changed bumps the last changed token so cached queries miss
func (t *Table) changed(ctx context.Context) {
	if t.cache == nil {
		return
	}
	token, err := t.cache.BumpChanged(ctx)
	if err != nil {
		t.cacheWarn("last changed bump failed", err)
		return
	}
	t.logger.Debug("last changed bumped", zap.String("table", t.schema.Table().Name), zap.String("token", token))
}

// forgetItem drops the cached row of id and, when the row is known, the
// lookups pointing at it
func (t *Table) forgetItem(ctx context.Context, id interface{}, row map[string]interface{}) {
	if t.cache == nil {
		return
	}
	if err := t.cache.DeleteItem(ctx, id); err != nil {
		t.cacheWarn("item cache delete failed", err)
	}
	for _, col := range t.schema.CacheKeyColumns() {
		if col.Primary {
			continue
		}
		if v, ok := row[col.Name]; ok {
			t.forgetLookup(ctx, col.Name, col.BindValue(v))
		}
	}
}

func (t *Table) forgetLookup(ctx context.Context, column string, value interface{}) {
	if t.cache == nil {
		return
	}
	if err := t.cache.DeleteID(ctx, column, value); err != nil {
		t.cacheWarn("lookup cache delete failed", err)
	}
}

func (t *Table) forgetMeta(ctx context.Context, id interface{}) {
	if t.cache == nil || t.schema.Table().Meta == nil {
		return
	}
	if err := t.cache.DeleteMeta(ctx, id); err != nil {
		t.cacheWarn("meta cache delete failed", err)
	}
}
