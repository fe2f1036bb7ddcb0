// Package gateway executes compiled statements through database/sql.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/query"
)

// ErrGateway wraps every failure reported by the database
var ErrGateway = errors.New("database gateway failure")

// Result is the outcome of a write statement
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Gateway is the database access the engine needs. Statements use the
// dialect's placeholders and every value is bound, never interpolated.
type Gateway interface {
	// Query returns every row as a column → value map
	Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)

	// Column returns the first column of every row
	Column(ctx context.Context, sql string, args ...interface{}) ([]interface{}, error)

	// Scalar returns the first column of the first row, nil without rows
	Scalar(ctx context.Context, sql string, args ...interface{}) (interface{}, error)

	// Exec runs a write statement
	Exec(ctx context.Context, sql string, args ...interface{}) (Result, error)

	// Dialect returns the SQL dialect of the database
	Dialect() query.Dialect
}

// SQLGateway implements Gateway on a *sql.DB
type SQLGateway struct {
	db      *sql.DB
	dialect query.Dialect
	logger  *zap.Logger
}

// Option configures an SQLGateway
type Option func(*SQLGateway)

// WithLogger logs statements at debug level and failures at warn level
func WithLogger(logger *zap.Logger) Option {
	return func(g *SQLGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New wraps an open database
func New(db *sql.DB, dialect query.Dialect, opts ...Option) *SQLGateway {
	if dialect == nil {
		dialect = query.MySQL
	}
	g := &SQLGateway{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open opens a database with one of the registered drivers. The dialect
// is derived from the driver name unless dialectName is set.
func Open(ctx context.Context, driver, dsn, dialectName string, opts ...Option) (*SQLGateway, error) {
	if dialectName == "" {
		dialectName = driver
	}
	dialect, err := query.DialectByName(dialectName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrGateway, driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrGateway, driver, err)
	}

	return New(db, dialect, opts...), nil
}

// DB returns the underlying database handle
func (g *SQLGateway) DB() *sql.DB {
	return g.db
}

// Close closes the database
func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// Dialect implements Gateway
func (g *SQLGateway) Dialect() query.Dialect {
	return g.dialect
}

// Query implements Gateway
func (g *SQLGateway) Query(ctx context.Context, sqlStr string, args ...interface{}) ([]map[string]interface{}, error) {
	start := time.Now()

	rows, err := g.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, g.fail(opQuery, start, sqlStr, err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, g.fail(opQuery, start, sqlStr, err)
	}

	g.done(opQuery, start, sqlStr, args)
	return results, nil
}

// Column implements Gateway
func (g *SQLGateway) Column(ctx context.Context, sqlStr string, args ...interface{}) ([]interface{}, error) {
	start := time.Now()

	rows, err := g.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, g.fail(opQuery, start, sqlStr, err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, g.fail(opQuery, start, sqlStr, err)
		}
		out = append(out, normalize(v))
	}
	if err := rows.Err(); err != nil {
		return nil, g.fail(opQuery, start, sqlStr, err)
	}

	g.done(opQuery, start, sqlStr, args)
	return out, nil
}

// Scalar implements Gateway
func (g *SQLGateway) Scalar(ctx context.Context, sqlStr string, args ...interface{}) (interface{}, error) {
	start := time.Now()

	var v interface{}
	err := g.db.QueryRowContext(ctx, sqlStr, args...).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		g.done(opScalar, start, sqlStr, args)
		return nil, nil
	case err != nil:
		return nil, g.fail(opScalar, start, sqlStr, err)
	}

	g.done(opScalar, start, sqlStr, args)
	return normalize(v), nil
}

// Exec implements Gateway
func (g *SQLGateway) Exec(ctx context.Context, sqlStr string, args ...interface{}) (Result, error) {
	start := time.Now()

	res, err := g.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return Result{}, g.fail(opExec, start, sqlStr, err)
	}

	var out Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// Drivers without LastInsertId support (lib/pq, pgx) report an error here
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}

	g.done(opExec, start, sqlStr, args)
	return out, nil
}

func (g *SQLGateway) done(op string, start time.Time, sqlStr string, args []interface{}) {
	observe(op, resultOK, start)
	g.logger.Debug("sql",
		zap.String("op", op),
		zap.String("sql", sqlStr),
		zap.Int("args", len(args)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (g *SQLGateway) fail(op string, start time.Time, sqlStr string, err error) error {
	observe(op, resultError, start)
	g.logger.Warn("sql failed",
		zap.String("op", op),
		zap.String("sql", sqlStr),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", ErrGateway, err)
}

// scanRows scans SQL rows into a slice of maps
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = normalize(values[i])
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalize converts driver byte slices to strings
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
