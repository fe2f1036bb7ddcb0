// Package schema describes the columns, indexes and table of one queryable
// table. A Schema is built once and is read-only afterwards.
package schema

import (
	"fmt"
	"strings"
)

// ValueKind is the placeholder family used when binding a column value
type ValueKind int

const (
	// KindAuto derives the kind from the column's SQL type
	KindAuto ValueKind = iota
	// KindString binds values as strings (%s)
	KindString
	// KindInt binds values as integers (%d)
	KindInt
	// KindFloat binds values as floats (%f)
	KindFloat
)

// String returns the printf-style tag for the kind
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "%d"
	case KindFloat:
		return "%f"
	default:
		return "%s"
	}
}

// ParseValueKind converts a %s/%d/%f tag (or string/int/float) into a ValueKind
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return KindAuto, nil
	case "%s", "s", "string":
		return KindString, nil
	case "%d", "d", "int":
		return KindInt, nil
	case "%f", "f", "float":
		return KindFloat, nil
	default:
		return KindAuto, fmt.Errorf("unknown value pattern: %s", s)
	}
}

// Operation is a kind of access to a column
type Operation int

const (
	// OpSelect reads a column
	OpSelect Operation = iota
	// OpInsert writes a column of a new item
	OpInsert
	// OpUpdate changes a column of an existing item
	OpUpdate
	// OpDelete removes an item holding the column
	OpDelete
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseOperation converts a string into an Operation
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "select":
		return OpSelect, nil
	case "insert":
		return OpInsert, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown operation: %s", s)
	}
}

// TypeFamily groups SQL column types by how their values are validated
type TypeFamily int

const (
	FamilyText TypeFamily = iota
	FamilyInteger
	FamilyDecimal
	FamilyFloat
	FamilyDatetime
	FamilyDate
	FamilyTime
	FamilyBinary
)

// String returns the string representation of the family
func (f TypeFamily) String() string {
	switch f {
	case FamilyInteger:
		return "integer"
	case FamilyDecimal:
		return "decimal"
	case FamilyFloat:
		return "float"
	case FamilyDatetime:
		return "datetime"
	case FamilyDate:
		return "date"
	case FamilyTime:
		return "time"
	case FamilyBinary:
		return "binary"
	default:
		return "text"
	}
}

// FamilyOf classifies an SQL type name such as "bigint" or "varchar"
func FamilyOf(sqlType string) TypeFamily {
	switch strings.ToLower(strings.TrimSpace(sqlType)) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "bit", "serial", "bigserial":
		return FamilyInteger
	case "decimal", "numeric":
		return FamilyDecimal
	case "float", "double", "real", "double precision":
		return FamilyFloat
	case "datetime", "timestamp", "timestamptz":
		return FamilyDatetime
	case "date":
		return FamilyDate
	case "time":
		return FamilyTime
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob", "bytea":
		return FamilyBinary
	default:
		return FamilyText
	}
}

// defaultKind derives the placeholder family from a type family
func defaultKind(f TypeFamily) ValueKind {
	switch f {
	case FamilyInteger:
		return KindInt
	case FamilyDecimal, FamilyFloat:
		return KindFloat
	default:
		return KindString
	}
}
