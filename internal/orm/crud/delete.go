package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// Delete removes an item and its metadata. The delete is refused when the
// policy denies every field of the item.
func (o *Operations) Delete(ctx context.Context, id interface{}) (map[string]interface{}, error) {
	row, err := o.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := 0
	for field := range row {
		if o.policy.Can(schema.OpDelete, field) {
			allowed++
		}
	}
	if allowed == 0 {
		return nil, fmt.Errorf("%w: cannot delete %s %v", ErrAccessDenied, o.schema.Table().ItemName, id)
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", o.table(), o.schema.PrimaryColumnName())
	res, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), o.bindID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to delete item: %w", ConvertDBError(err))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, o.schema.Table().ItemName, id)
	}

	if o.schema.Table().Meta != nil {
		if err := o.DeleteAllMeta(ctx, id); err != nil {
			return row, err
		}
	}

	o.logger.Debug("item deleted", zap.String("table", o.table()), zap.Any("id", id))
	o.fire(ctx, hooks.Event{Type: hooks.EventDeleted, ItemID: id, Item: row})

	return row, nil
}
