package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/cli/config"
	"github.com/conduit-lang/tablequery/internal/orm/access"
	"github.com/conduit-lang/tablequery/internal/orm/cache"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/table"
)

// env holds everything a command needs to talk to the table
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	schema  *schema.Schema
	gateway *gateway.SQLGateway
	cache   cache.Provider
	table   *table.Table
}

// loadConfig reads the configuration, applying the schema override
func loadConfig(flags *globalFlags, schemaPath string) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if schemaPath != "" {
		cfg.Schema = schemaPath
	}
	return cfg, nil
}

// dialect returns the SQL dialect configured for the database
func dialect(cfg *config.Config) (query.Dialect, error) {
	name := cfg.Database.Dialect
	if name == "" {
		name = cfg.Database.Driver
	}
	return query.DialectByName(name)
}

// openEnv connects to the database and cache and builds the table
func openEnv(ctx context.Context, flags *globalFlags) (*env, error) {
	cfg, err := loadConfig(flags, "")
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	if err := e.open(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) open(ctx context.Context) error {
	logger, err := e.cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	e.logger = logger

	e.schema, err = schema.LoadFile(e.cfg.Schema)
	if err != nil {
		return err
	}

	e.gateway, err = gateway.Open(ctx, e.cfg.Database.Driver, e.cfg.Database.DSN, e.cfg.Database.Dialect,
		gateway.WithLogger(logger))
	if err != nil {
		return err
	}

	e.cache, err = newCacheProvider(ctx, e.cfg.Cache)
	if err != nil {
		return err
	}

	policy, err := newPolicy(e.cfg.Access, e.schema, logger)
	if err != nil {
		return err
	}

	e.table, err = table.New(table.Config{
		Schema:    e.schema,
		Gateway:   e.gateway,
		Cache:     e.cache,
		Policy:    policy,
		CacheTTL:  e.cfg.Cache.TTL,
		BatchSize: e.cfg.Database.BatchSize,
	}, table.WithLogger(logger))
	return err
}

// newCacheProvider builds the configured cache backend, nil for "none"
func newCacheProvider(ctx context.Context, cfg config.CacheConfig) (cache.Provider, error) {
	common := cache.Config{DefaultTTL: cfg.TTL, Prefix: cfg.Prefix}

	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Config:   common,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
		}
		return rc, nil
	default:
		return cache.NewMemoryCacheWithConfig(common), nil
	}
}

// newPolicy builds a casbin policy when access checks are configured
func newPolicy(cfg config.AccessConfig, s *schema.Schema, logger *zap.Logger) (access.Policy, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	enforcer, err := access.NewEnforcer("")
	if err != nil {
		return nil, err
	}
	if err := access.LoadRules(enforcer, cfg.Rules); err != nil {
		return nil, fmt.Errorf("access rules: %w", err)
	}
	return access.NewCasbinPolicy(enforcer, cfg.Subject, s.Table().Name, logger), nil
}

// Close releases the database and cache connections
func (e *env) Close() error {
	var errs []error
	if closer, ok := e.cache.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if e.gateway != nil {
		errs = append(errs, e.gateway.Close())
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	return errors.Join(errs...)
}
