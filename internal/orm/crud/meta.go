package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

func (o *Operations) metaTable() (*schema.MetaTable, error) {
	m := o.schema.Table().Meta
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMetaTable, o.table())
	}
	return m, nil
}

// GetMeta returns every metadata value of an item, grouped by key in
// insertion order
func (o *Operations) GetMeta(ctx context.Context, id interface{}) (map[string][]interface{}, error) {
	m, err := o.metaTable()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? ORDER BY %s",
		m.KeyColumn, m.ValueColumn, m.Name, m.ForeignKey, m.IDColumn)
	rows, err := o.gateway.Query(ctx, o.dialect().Rebind(sql), o.bindID(id))
	if err != nil {
		return nil, ConvertDBError(err)
	}

	out := make(map[string][]interface{})
	for _, row := range rows {
		key, _ := validation.String(row[m.KeyColumn])
		out[key] = append(out[key], row[m.ValueColumn])
	}
	return out, nil
}

// GetMetaMany returns the metadata of several items keyed by item.Key of
// each id, reading large id lists in batches. Items without metadata are
// absent.
func (o *Operations) GetMetaMany(ctx context.Context, ids []interface{}) (map[string]map[string][]interface{}, error) {
	m, err := o.metaTable()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string][]interface{})

	for _, batch := range item.Batches(ids, o.batch) {
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = o.bindID(id)
		}
		sql := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s",
			m.ForeignKey, m.KeyColumn, m.ValueColumn, m.Name, m.ForeignKey, placeholders(len(batch)), m.IDColumn)
		rows, err := o.gateway.Query(ctx, o.dialect().Rebind(sql), args...)
		if err != nil {
			return nil, ConvertDBError(err)
		}

		for _, row := range rows {
			id := item.Key(row[m.ForeignKey])
			key, _ := validation.String(row[m.KeyColumn])
			if out[id] == nil {
				out[id] = make(map[string][]interface{})
			}
			out[id][key] = append(out[id][key], row[m.ValueColumn])
		}
	}
	return out, nil
}

// AddMeta stores one more value under key
func (o *Operations) AddMeta(ctx context.Context, id interface{}, key string, value interface{}) error {
	m, err := o.metaTable()
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty metadata key", ErrNoFields)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)", m.Name, m.ForeignKey, m.KeyColumn, m.ValueColumn)
	if _, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), o.bindID(id), key, metaValue(value)); err != nil {
		return fmt.Errorf("failed to add metadata: %w", ConvertDBError(err))
	}
	return nil
}

// UpdateMeta replaces the values under key. A list value stores one row
// per element.
func (o *Operations) UpdateMeta(ctx context.Context, id interface{}, key string, value interface{}) error {
	if err := o.DeleteMeta(ctx, id, key); err != nil {
		return err
	}
	return o.addMetaValues(ctx, id, key, value)
}

// DeleteMeta removes every value under key
func (o *Operations) DeleteMeta(ctx context.Context, id interface{}, key string) error {
	m, err := o.metaTable()
	if err != nil {
		return err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", m.Name, m.ForeignKey, m.KeyColumn)
	if _, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), o.bindID(id), key); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteAllMeta removes every metadata row of an item
func (o *Operations) DeleteAllMeta(ctx context.Context, id interface{}) error {
	m, err := o.metaTable()
	if err != nil {
		return err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", m.Name, m.ForeignKey)
	if _, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), o.bindID(id)); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", ConvertDBError(err))
	}
	return nil
}

func (o *Operations) addMetaValues(ctx context.Context, id interface{}, key string, value interface{}) error {
	values, ok := value.([]interface{})
	if !ok {
		values = []interface{}{value}
	}
	for _, v := range values {
		if err := o.AddMeta(ctx, id, key, v); err != nil {
			return err
		}
	}
	return nil
}

// metaValue renders a value for the text value column. Scalars keep their
// string form; everything else is stored as JSON.
func metaValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}, []string:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	if s, ok := validation.String(v); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
