package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Common CRUD error types
var (
	// ErrNotFound is returned when an item does not exist
	ErrNotFound = errors.New("item not found")

	// ErrItemExists is returned when adding an item whose primary key is taken
	ErrItemExists = errors.New("item already exists")

	// ErrAccessDenied is returned when the policy leaves nothing to write
	ErrAccessDenied = errors.New("access denied")

	// ErrNoChanges is returned when an update would not change anything
	ErrNoChanges = errors.New("no changes to save")

	// ErrNoFields is returned when there is nothing to insert
	ErrNoFields = errors.New("no fields to write")

	// ErrNoMetaTable is returned by metadata calls on a table without one
	ErrNoMetaTable = errors.New("table has no metadata table")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError converts driver errors to CRUD errors. The original
// error stays in the chain.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// PostgreSQL through pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if target := constraintError(pgErr.Code); target != nil {
			return fmt.Errorf("%w: %w", target, err)
		}
	}

	// PostgreSQL through lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if target := constraintError(string(pqErr.Code)); target != nil {
			return fmt.Errorf("%w: %w", target, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		var target error
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			target = ErrUniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			target = ErrForeignKeyViolation
		case sqlite3.ErrConstraintCheck:
			target = ErrCheckViolation
		case sqlite3.ErrConstraintNotNull:
			target = ErrNotNullViolation
		}
		if target != nil {
			return fmt.Errorf("%w: %w", target, err)
		}
	}

	return err
}

// constraintError maps SQLSTATE integrity codes
func constraintError(code string) error {
	switch code {
	case "23505": // unique_violation
		return ErrUniqueViolation
	case "23503": // foreign_key_violation
		return ErrForeignKeyViolation
	case "23514": // check_violation
		return ErrCheckViolation
	case "23502": // not_null_violation
		return ErrNotNullViolation
	}
	return nil
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}
