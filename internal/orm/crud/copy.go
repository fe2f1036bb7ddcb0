package crud

import (
	"context"

	"github.com/conduit-lang/tablequery/internal/orm/hooks"
)

// Copy adds a new item from the values of id with overrides applied. The
// primary, uuid, created and modified columns start fresh; metadata is
// copied unless overridden. When the row was inserted but copying its
// metadata failed, the new id is returned along with the error.
func (o *Operations) Copy(ctx context.Context, id interface{}, overrides map[string]interface{}) (interface{}, error) {
	row, err := o.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	data := make(map[string]interface{}, len(row)+len(overrides))
	for _, col := range o.schema.Columns() {
		if col.Primary || col.UUID || col.Created || col.Modified {
			continue
		}
		if v, ok := row[col.Name]; ok {
			data[col.Name] = v
		}
	}

	if o.schema.Table().Meta != nil {
		meta, err := o.GetMeta(ctx, id)
		if err != nil {
			return nil, err
		}
		for key, values := range meta {
			if len(values) == 1 {
				data[key] = values[0]
			} else {
				data[key] = values
			}
		}
	}

	for k, v := range overrides {
		data[k] = v
	}

	// A failed metadata write still leaves the new row behind, so its id
	// is returned with the error
	newID, err := o.Add(ctx, data)
	if err != nil {
		return newID, err
	}

	o.fire(ctx, hooks.Event{Type: hooks.EventCopied, ItemID: newID, Item: map[string]interface{}{"source": id}})
	return newID, nil
}
