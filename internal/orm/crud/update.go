package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/tracking"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// UpdateResult describes a completed update
type UpdateResult struct {
	// Changes maps each written column to its old and new value
	Changes map[string][2]interface{}
	// Meta lists the metadata keys that were written
	Meta []string
	// Partial is set when a metadata write failed after the update began.
	// The metadata of the item may be incomplete.
	Partial bool
}

// Update writes the columns of data that differ from the stored item. The
// modified column is refreshed whenever something changes; the primary key
// is never updated. Keys that are not columns replace metadata values.
//
// Once anything was written the result is returned even when a later step
// fails, so callers can tell a partial write from no write at all.
func (o *Operations) Update(ctx context.Context, id interface{}, data map[string]interface{}) (*UpdateResult, error) {
	original, err := o.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	columns, extra := o.split(data)
	incoming := make(map[string]interface{}, len(columns))
	for _, col := range o.schema.Columns() {
		v, ok := columns[col.Name]
		if !ok || col.Primary {
			continue
		}
		if !o.policy.Can(schema.OpUpdate, col.Name) {
			o.logger.Debug("update denied", zap.String("table", o.table()), zap.String("field", col.Name))
			continue
		}
		incoming[col.Name] = col.ValidateAt(v, o.now)
	}

	ct := tracking.NewChangeTracker(original, incoming)
	o.discardSameNumbers(ct)
	if ct.HasChanges() {
		o.refreshModified(ct, columns)
	}

	if !ct.HasChanges() && (len(extra) == 0 || o.schema.Table().Meta == nil) {
		return nil, fmt.Errorf("%w: %s %v", ErrNoChanges, o.schema.Table().ItemName, id)
	}

	result := &UpdateResult{Changes: make(map[string][2]interface{})}
	if ct.HasChanges() {
		if err := o.updateRecord(ctx, id, ct); err != nil {
			return nil, err
		}
		for _, field := range ct.ChangedFields() {
			change := ct.GetChange(field)
			result.Changes[field] = [2]interface{}{change.OldValue, change.NewValue}
		}
	}

	if o.schema.Table().Meta != nil {
		for _, key := range sortedKeys(extra) {
			if err := o.UpdateMeta(ctx, id, key, extra[key]); err != nil {
				result.Partial = true
				return result, err
			}
			result.Meta = append(result.Meta, key)
		}
	}

	o.logger.Debug("item updated",
		zap.String("table", o.table()),
		zap.Any("id", id),
		zap.Strings("fields", ct.ChangedFields()),
	)

	o.fireTransitions(ctx, id, result.Changes)
	o.fire(ctx, hooks.Event{Type: hooks.EventUpdated, ItemID: id, Item: ct.GetChangedData()})

	return result, nil
}

// discardSameNumbers drops decimal changes that only differ in trailing
// zeros, such as a stored "12.50" against an incoming 12.5
func (o *Operations) discardSameNumbers(ct *tracking.ChangeTracker) {
	for _, field := range ct.ChangedFields() {
		col, ok := o.schema.Column(field)
		if !ok || col.Family() != schema.FamilyDecimal {
			continue
		}
		if change := ct.GetChange(field); validation.NumericEqual(change.OldValue, change.NewValue) {
			ct.Discard(field)
		}
	}
}

// refreshModified stamps the modified column unless the caller set it
func (o *Operations) refreshModified(ct *tracking.ChangeTracker, supplied map[string]interface{}) {
	col, ok := o.schema.ModifiedColumn()
	if !ok || !o.policy.Can(schema.OpUpdate, col.Name) {
		return
	}
	if v, given := supplied[col.Name]; given && !col.IsDefault(v) {
		return
	}
	ct.Set(col.Name, col.ValidateAt(validation.CurrentTimestamp, o.now))
}

func (o *Operations) updateRecord(ctx context.Context, id interface{}, ct *tracking.ChangeTracker) error {
	var (
		sets   []string
		values []interface{}
	)
	for _, col := range o.schema.Columns() {
		if change := ct.GetChange(col.Name); change != nil {
			sets = append(sets, col.Name+" = ?")
			values = append(values, change.NewValue)
		}
	}
	values = append(values, o.bindID(id))

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", o.table(), strings.Join(sets, ", "), o.schema.PrimaryColumnName())
	if _, err := o.gateway.Exec(ctx, o.dialect().Rebind(sql), values...); err != nil {
		return fmt.Errorf("failed to update item: %w", ConvertDBError(err))
	}
	return nil
}

// fireTransitions fires events for changed columns flagged with transitions
func (o *Operations) fireTransitions(ctx context.Context, id interface{}, changes map[string][2]interface{}) {
	flagged := make(map[string][2]interface{})
	for field, change := range changes {
		if col, ok := o.schema.Column(field); ok && col.Transitions {
			flagged[field] = change
		}
	}
	if len(flagged) == 0 {
		return
	}
	if err := o.hooks.Transitions(ctx, o.table(), id, flagged); err != nil {
		o.logger.Warn("transition hooks failed", zap.String("table", o.table()), zap.Error(err))
	}
}
