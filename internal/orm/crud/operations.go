// Package crud writes items: add, update, delete and copy, plus the
// key/value metadata kept in a side table.
//
// Values pass through their column validators before they are written.
// Fields the access policy denies are dropped from the write.
package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/access"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Operations provides the write path for one table
type Operations struct {
	schema  *schema.Schema
	gateway gateway.Gateway
	policy  access.Policy
	shaper  *item.Shaper
	hooks   *hooks.Executor
	logger  *zap.Logger
	now     validation.Clock
	batch   int
}

// Option configures Operations
type Option func(*Operations)

// WithHooks fires events through executor after successful writes
func WithHooks(executor *hooks.Executor) Option {
	return func(o *Operations) {
		if executor != nil {
			o.hooks = executor
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Operations) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for created and modified timestamps
func WithClock(now validation.Clock) Option {
	return func(o *Operations) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBatchSize sets how many ids a multi-item read binds per statement
func WithBatchSize(n int) Option {
	return func(o *Operations) {
		if n > 0 {
			o.batch = n
		}
	}
}

// NewOperations creates the write path for s. A nil policy allows
// everything.
func NewOperations(s *schema.Schema, gw gateway.Gateway, policy access.Policy, opts ...Option) (*Operations, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", schema.ErrConfiguration)
	}
	if gw == nil {
		return nil, fmt.Errorf("%w: nil gateway", schema.ErrConfiguration)
	}
	if policy == nil {
		policy = access.AllowAll
	}

	o := &Operations{
		schema:  s,
		gateway: gw,
		policy:  policy,
		logger:  zap.NewNop(),
		now:     validation.UTCNow,
		batch:   item.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.hooks == nil {
		o.hooks = hooks.NewExecutor(nil, o.logger)
	}
	o.shaper = item.NewShaper(s, policy, gw, item.WithClock(o.now), item.WithBatchSize(o.batch))

	return o, nil
}

// Schema returns the table schema
func (o *Operations) Schema() *schema.Schema {
	return o.schema
}

// Hooks returns the hook registry events are read from
func (o *Operations) Hooks() *hooks.Registry {
	return o.hooks.Registry()
}

func (o *Operations) dialect() query.Dialect {
	if d := o.gateway.Dialect(); d != nil {
		return d
	}
	return query.MySQL
}

func (o *Operations) table() string {
	return o.schema.Table().Name
}

// split separates column values from extra metadata. Keys are resolved
// through column aliases.
func (o *Operations) split(data map[string]interface{}) (columns, extra map[string]interface{}) {
	columns = make(map[string]interface{})
	extra = make(map[string]interface{})
	for k, v := range data {
		if col, ok := o.schema.Column(k); ok {
			columns[col.Name] = v
			continue
		}
		extra[k] = v
	}
	return columns, extra
}

// bindID converts id to the primary column's value kind
func (o *Operations) bindID(id interface{}) interface{} {
	if col, ok := o.schema.PrimaryColumn(); ok {
		return col.BindValue(id)
	}
	return id
}

// fetch reads the stored row of id, validated but not redacted
func (o *Operations) fetch(ctx context.Context, id interface{}) (map[string]interface{}, error) {
	rows, err := o.shaper.Fetch(ctx, []interface{}{id})
	if err != nil {
		return nil, ConvertDBError(err)
	}
	row, ok := rows[item.Key(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, o.schema.Table().ItemName, id)
	}

	out := make(map[string]interface{}, len(row))
	for _, col := range o.schema.Columns() {
		if v, ok := row[col.Name]; ok {
			out[col.Name] = col.ValidateAt(v, o.now)
		}
	}
	return out, nil
}

// exists reports whether an item holds id
func (o *Operations) exists(ctx context.Context, id interface{}) (bool, error) {
	primary := o.schema.PrimaryColumnName()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", primary, o.table(), primary)
	v, err := o.gateway.Scalar(ctx, o.dialect().Rebind(sql), o.bindID(id))
	if err != nil {
		return false, ConvertDBError(err)
	}
	return v != nil, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (o *Operations) fire(ctx context.Context, event hooks.Event) {
	event.Table = o.table()
	if err := o.hooks.Fire(ctx, event); err != nil {
		o.logger.Warn("write hooks failed",
			zap.String("table", event.Table),
			zap.String("event", event.Type.String()),
			zap.Error(err),
		)
	}
}
