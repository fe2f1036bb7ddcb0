package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Add inserts a new item and returns its primary key. A supplied primary
// key must not exist yet. Empty created and modified columns are stamped,
// and keys that are not columns go to the metadata table.
func (o *Operations) Add(ctx context.Context, data map[string]interface{}) (interface{}, error) {
	columns, extra := o.split(data)
	primary := o.schema.PrimaryColumnName()
	primaryCol, hasPrimary := o.schema.PrimaryColumn()

	// An explicit primary key is inserted as given, never upserted
	var id interface{}
	if v, ok := columns[primary]; ok && hasPrimary && !primaryCol.IsDefault(v) {
		id = primaryCol.ValidateAt(v, o.now)
		found, err := o.exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, fmt.Errorf("%w: %s %v", ErrItemExists, o.schema.Table().ItemName, id)
		}
	}

	record, err := o.insertRecord(columns, id)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(record))
	values := make([]interface{}, 0, len(record))
	for _, col := range o.schema.Columns() {
		if v, ok := record[col.Name]; ok {
			fields = append(fields, col.Name)
			values = append(values, v)
		}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", o.table(), strings.Join(fields, ", "), placeholders(len(fields)))

	returning := o.dialect().Returning(primary)
	switch {
	case id != nil:
		if _, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), values...); err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", ConvertDBError(err))
		}
	case returning != "":
		v, err := o.gateway.Scalar(ctx, o.dialect().Rebind(sql+returning), values...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", ConvertDBError(err))
		}
		id = v
	default:
		res, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), values...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", ConvertDBError(err))
		}
		id = res.LastInsertID
	}
	record[primary] = id

	o.logger.Debug("item added", zap.String("table", o.table()), zap.Any("id", id))

	if err := o.addExtra(ctx, id, extra); err != nil {
		return id, err
	}

	o.fire(ctx, hooks.Event{Type: hooks.EventAdded, ItemID: id, Item: record})
	return id, nil
}

// insertRecord validates the columns of a new item. Columns not supplied
// are left to the database except uuid, created and modified columns.
func (o *Operations) insertRecord(columns map[string]interface{}, id interface{}) (map[string]interface{}, error) {
	record := make(map[string]interface{})
	denied := 0

	for _, col := range o.schema.Columns() {
		if col.Primary {
			if id != nil {
				record[col.Name] = id
			}
			continue
		}

		v, supplied := columns[col.Name]
		stamped := (col.Created || col.Modified) && (!supplied || col.IsDefault(v))
		if !supplied && !stamped && !col.UUID {
			continue
		}
		if !o.policy.Can(schema.OpInsert, col.Name) {
			denied++
			continue
		}

		switch {
		case stamped:
			record[col.Name] = col.ValidateAt(validation.CurrentTimestamp, o.now)
		default:
			record[col.Name] = col.ValidateAt(v, o.now)
		}
	}

	if len(record) == 0 {
		if denied > 0 {
			return nil, fmt.Errorf("%w: no insertable fields", ErrAccessDenied)
		}
		return nil, ErrNoFields
	}
	return record, nil
}

// addExtra stores non-column keys as metadata, or drops them when the
// table has no metadata table
func (o *Operations) addExtra(ctx context.Context, id interface{}, extra map[string]interface{}) error {
	if len(extra) == 0 {
		return nil
	}
	if o.schema.Table().Meta == nil {
		o.logger.Debug("dropping extra data", zap.String("table", o.table()), zap.Int("keys", len(extra)))
		return nil
	}
	for _, key := range sortedKeys(extra) {
		if err := o.addMetaValues(ctx, id, key, extra[key]); err != nil {
			return err
		}
	}
	return nil
}
