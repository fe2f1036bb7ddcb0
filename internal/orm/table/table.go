// Package table is the public surface of the query engine for one table:
// cached queries, single item lookups and the write path.
//
// Every method returns an explicit error. Lenient wraps the same calls in
// a boolean-success form that never fails loudly.
package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/access"
	"github.com/conduit-lang/tablequery/internal/orm/cache"
	"github.com/conduit-lang/tablequery/internal/orm/crud"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/hooks"
	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// ErrUnknownColumn is returned for lookups by a column that is not a
// cache key
var ErrUnknownColumn = errors.New("column cannot be used for lookups")

// Config holds the collaborators of a Table
type Config struct {
	Schema  *schema.Schema
	Gateway gateway.Gateway

	// Cache stores query results and item rows. Nil disables caching.
	Cache cache.Provider

	// Policy redacts fields. Nil allows everything.
	Policy access.Policy

	// Dialect renders compiled SQL. Nil uses the gateway's dialect.
	Dialect query.Dialect

	// CacheTTL is the lifetime of cached values, 0 for the provider default
	CacheTTL time.Duration

	// Clock stamps created and modified columns
	Clock validation.Clock

	// BatchSize caps the ids bound per statement when reading many items,
	// 0 for item.DefaultBatchSize
	BatchSize int
}

// Option configures a Table
type Option func(*Table)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithHooks fires write events through registry
func WithHooks(registry *hooks.Registry) Option {
	return func(t *Table) {
		t.hooks = registry
	}
}

// Table runs queries and writes against one table
type Table struct {
	schema   *schema.Schema
	gateway  gateway.Gateway
	compiler *query.Compiler
	shaper   *item.Shaper
	ops      *crud.Operations
	cache    *cache.ResultCache
	hooks    *hooks.Registry
	logger   *zap.Logger

	// err is the construction failure every operation reports
	err error

	mu      sync.Mutex
	lastErr error
}

// New creates a Table. On a configuration error the returned Table is
// still usable as a value but refuses every operation with that error.
func New(cfg Config, opts ...Option) (*Table, error) {
	t := &Table{
		schema:  cfg.Schema,
		gateway: cfg.Gateway,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.init(cfg); err != nil {
		t.err = err
		t.lastErr = err
		t.logger.Error("table configuration failed", zap.Error(err))
		return t, err
	}
	return t, nil
}

func (t *Table) init(cfg Config) error {
	if cfg.Schema == nil {
		return fmt.Errorf("%w: schema is required", schema.ErrConfiguration)
	}
	if cfg.Gateway == nil {
		return fmt.Errorf("%w: gateway is required", schema.ErrConfiguration)
	}

	dialect := cfg.Dialect
	if dialect == nil {
		dialect = cfg.Gateway.Dialect()
	}

	compiler, err := query.NewCompiler(cfg.Schema, query.WithDialect(dialect), query.WithClock(cfg.Clock))
	if err != nil {
		return err
	}
	t.compiler = compiler

	t.shaper = item.NewShaper(cfg.Schema, cfg.Policy, cfg.Gateway, item.WithClock(cfg.Clock), item.WithBatchSize(cfg.BatchSize))

	t.ops, err = crud.NewOperations(cfg.Schema, cfg.Gateway, cfg.Policy,
		crud.WithLogger(t.logger),
		crud.WithClock(cfg.Clock),
		crud.WithBatchSize(cfg.BatchSize),
		crud.WithHooks(hooks.NewExecutor(t.hooks, t.logger)),
	)
	if err != nil {
		return err
	}

	if cfg.Cache != nil {
		t.cache = cache.NewResultCache(cfg.Cache, cfg.Schema.Table(), cfg.CacheTTL)
	}
	return nil
}

// Schema returns the table schema
func (t *Table) Schema() *schema.Schema {
	return t.schema
}

// Compiler returns the query compiler
func (t *Table) Compiler() *query.Compiler {
	return t.compiler
}

// Hooks returns the registry write events fire through
func (t *Table) Hooks() *hooks.Registry {
	if t.ops == nil {
		return nil
	}
	return t.ops.Hooks()
}

// LastError returns the error of the most recent failed operation
func (t *Table) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// fail records err as the last error and returns it
func (t *Table) fail(err error) error {
	if err == nil {
		return nil
	}
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
	return err
}

// ready reports the construction error, if any
func (t *Table) ready() error {
	if t.err != nil {
		return t.fail(t.err)
	}
	return nil
}

// cacheWarn logs a cache failure. The cache is best-effort and never
// fails an operation.
func (t *Table) cacheWarn(msg string, err error) {
	t.logger.Warn(msg, zap.String("table", t.schema.Table().Name), zap.Error(err))
}
