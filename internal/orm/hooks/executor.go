package hooks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Executor runs the hooks of a registry
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates an executor over registry. A nil registry runs nothing.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Registry returns the registry hooks are read from
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Fire runs every matching hook in registration order. All hooks run;
// their errors are joined.
func (e *Executor) Fire(ctx context.Context, event Event) error {
	hooks := e.registry.GetHooks(event.Type, event.Column)
	if len(hooks) == 0 {
		return nil
	}

	record := copyRecord(event.Item)

	var errs []error
	for _, hook := range hooks {
		ev := event
		ev.Item = record
		if err := hook.Fn(ctx, ev); err != nil {
			e.logger.Warn("hook failed",
				zap.String("event", event.Type.String()),
				zap.String("table", event.Table),
				zap.String("column", event.Column),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("hook %s failed: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Transitions fires one EventTransition per changed column
func (e *Executor) Transitions(ctx context.Context, table string, id interface{}, changes map[string][2]interface{}) error {
	var errs []error
	for column, change := range changes {
		err := e.Fire(ctx, Event{
			Type:   EventTransition,
			Table:  table,
			ItemID: id,
			Column: column,
			From:   change[0],
			To:     change[1],
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// copyRecord keeps hooks from mutating the caller's data
func copyRecord(record map[string]interface{}) map[string]interface{} {
	if record == nil {
		return nil
	}
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		switch val := v.(type) {
		case []byte:
			out[k] = append([]byte(nil), val...)
		case []interface{}:
			out[k] = append([]interface{}(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}
