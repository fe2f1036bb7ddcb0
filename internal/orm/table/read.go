package table

import (
	"context"
	"fmt"

	"github.com/conduit-lang/tablequery/internal/orm/crud"
	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// GetItemByID returns one item, from the item cache when possible
func (t *Table) GetItemByID(ctx context.Context, id interface{}) (*item.Item, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if id == nil || id == "" {
		return nil, t.fail(fmt.Errorf("%w: empty id", crud.ErrNotFound))
	}

	items, err := t.items(ctx, []interface{}{id}, true)
	if err != nil {
		return nil, t.fail(err)
	}
	if len(items) == 0 {
		return nil, t.fail(fmt.Errorf("%w: %s %v", crud.ErrNotFound, t.schema.Table().ItemName, id))
	}
	return items[0], nil
}

// GetItemByColumn returns the item whose cache-key column holds value.
// The id behind each value is cached in the column's own group.
func (t *Table) GetItemByColumn(ctx context.Context, column string, value interface{}) (*item.Item, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	col, ok := t.schema.Column(column)
	if !ok || !col.CacheKey {
		return nil, t.fail(fmt.Errorf("%w: %s", ErrUnknownColumn, column))
	}
	if col.Primary {
		return t.GetItemByID(ctx, value)
	}

	bound := col.BindValue(value)

	if t.cache != nil {
		id, ok, err := t.cache.GetID(ctx, col.Name, bound)
		if err != nil {
			t.cacheWarn("lookup cache read failed", err)
		}
		if ok {
			return t.GetItemByID(ctx, id)
		}
	}

	primary := t.schema.PrimaryColumnName()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", primary, t.schema.Table().Name, col.Name)
	id, err := t.gateway.Scalar(ctx, t.compiler.Dialect().Rebind(sql), bound)
	if err != nil {
		return nil, t.fail(crud.ConvertDBError(err))
	}
	if id == nil {
		return nil, t.fail(fmt.Errorf("%w: %s %s=%v", crud.ErrNotFound, t.schema.Table().ItemName, col.Name, value))
	}

	if t.cache != nil {
		if err := t.cache.PutID(ctx, col.Name, bound, id); err != nil {
			t.cacheWarn("lookup cache write failed", err)
		}
	}
	return t.GetItemByID(ctx, id)
}

// GetMeta returns the metadata of an item, from the meta cache when
// possible
func (t *Table) GetMeta(ctx context.Context, id interface{}) (map[string][]interface{}, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	if t.cache != nil {
		meta, ok, err := t.cache.GetMeta(ctx, id)
		if err != nil {
			t.cacheWarn("meta cache read failed", err)
		}
		if ok {
			return meta, nil
		}
	}

	meta, err := t.ops.GetMeta(ctx, id)
	if err != nil {
		return nil, t.fail(err)
	}
	if t.cache != nil {
		if err := t.cache.PutMeta(ctx, id, meta); err != nil {
			t.cacheWarn("meta cache write failed", err)
		}
	}
	return meta, nil
}

// Can reports whether the table's policy allows op on field
func (t *Table) Can(op schema.Operation, field string) bool {
	if t.shaper == nil {
		return false
	}
	return t.shaper.Policy().Can(op, field)
}
