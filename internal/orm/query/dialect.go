package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect renders the database specific parts of a statement. Compiled SQL
// always uses "?" placeholders; Rebind converts them for the target database.
type Dialect interface {
	Name() string
	Rebind(sql string) string
	DatePart(unit DateUnit, column string) string
	Cast(expr, castType string) string
	Like(expr string, negate bool) string
	Regexp(expr string, negate bool) string
	OrderByList(column string, n int) string
	EscapeLike(s string) string
	Returning(column string) string
}

// DialectByName returns the dialect registered under name. Driver names
// are accepted as aliases.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", name)
	}
}

var (
	// MySQL is the default dialect
	MySQL Dialect = mysqlDialect{}
	// Postgres uses $n placeholders and RETURNING
	Postgres Dialect = postgresDialect{}
	// SQLite matches the mattn/go-sqlite3 driver
	SQLite Dialect = sqliteDialect{}
)

var castPattern = regexp.MustCompile(`^(BINARY|CHAR|DATE|DATETIME|SIGNED|UNSIGNED|TIME|NUMERIC|DECIMAL)(\(\d+(,\s?\d+)?\))?$`)

// NormalizeCast upper-cases a cast type and maps unknown types to CHAR
func NormalizeCast(castType string) string {
	t := strings.ToUpper(strings.TrimSpace(castType))
	m := castPattern.FindStringSubmatch(t)
	if m == nil {
		return "CHAR"
	}
	if m[2] != "" && m[1] != "NUMERIC" && m[1] != "DECIMAL" {
		return m[1]
	}
	return t
}

// escapeLike backslash-escapes LIKE wildcards
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func listPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Rebind(sql string) string { return sql }

func (mysqlDialect) DatePart(unit DateUnit, column string) string {
	switch unit {
	case UnitYear:
		return "YEAR(" + column + ")"
	case UnitMonth:
		return "MONTH(" + column + ")"
	case UnitWeek:
		return "WEEK(" + column + ", 1)"
	case UnitDayOfYear:
		return "DAYOFYEAR(" + column + ")"
	case UnitDay:
		return "DAYOFMONTH(" + column + ")"
	case UnitDayOfWeek:
		return "DAYOFWEEK(" + column + ")"
	case UnitDayOfWeekISO:
		return "(WEEKDAY(" + column + ") + 1)"
	case UnitHour:
		return "HOUR(" + column + ")"
	case UnitMinute:
		return "MINUTE(" + column + ")"
	default:
		return "SECOND(" + column + ")"
	}
}

func (mysqlDialect) Cast(expr, castType string) string {
	t := NormalizeCast(castType)
	switch {
	case t == "CHAR":
		return expr
	case t == "NUMERIC":
		t = "SIGNED"
	case strings.HasPrefix(t, "NUMERIC("):
		t = "DECIMAL" + strings.TrimPrefix(t, "NUMERIC")
	}
	return "CAST(" + expr + " AS " + t + ")"
}

func (mysqlDialect) Like(expr string, negate bool) string {
	if negate {
		return expr + " NOT LIKE ?"
	}
	return expr + " LIKE ?"
}

func (mysqlDialect) Regexp(expr string, negate bool) string {
	if negate {
		return expr + " NOT REGEXP ?"
	}
	return expr + " REGEXP ?"
}

func (mysqlDialect) OrderByList(column string, n int) string {
	return "FIELD(" + column + ", " + listPlaceholders(n) + ")"
}

func (mysqlDialect) EscapeLike(s string) string { return escapeLike(s) }

func (mysqlDialect) Returning(string) string { return "" }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

// Rebind rewrites "?" placeholders as $1, $2, ... in order
func (postgresDialect) Rebind(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)

	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

func (postgresDialect) DatePart(unit DateUnit, column string) string {
	switch unit {
	case UnitYear:
		return "EXTRACT(YEAR FROM " + column + ")"
	case UnitMonth:
		return "EXTRACT(MONTH FROM " + column + ")"
	case UnitWeek:
		return "EXTRACT(WEEK FROM " + column + ")"
	case UnitDayOfYear:
		return "EXTRACT(DOY FROM " + column + ")"
	case UnitDay:
		return "EXTRACT(DAY FROM " + column + ")"
	case UnitDayOfWeek:
		return "(EXTRACT(DOW FROM " + column + ") + 1)"
	case UnitDayOfWeekISO:
		return "EXTRACT(ISODOW FROM " + column + ")"
	case UnitHour:
		return "EXTRACT(HOUR FROM " + column + ")"
	case UnitMinute:
		return "EXTRACT(MINUTE FROM " + column + ")"
	default:
		return "FLOOR(EXTRACT(SECOND FROM " + column + "))"
	}
}

func (postgresDialect) Cast(expr, castType string) string {
	t := NormalizeCast(castType)
	switch {
	case t == "CHAR":
		return expr
	case t == "SIGNED", t == "UNSIGNED":
		t = "BIGINT"
	case t == "BINARY":
		t = "BYTEA"
	case t == "DATETIME":
		t = "TIMESTAMP"
	case strings.HasPrefix(t, "DECIMAL"):
		t = "NUMERIC" + strings.TrimPrefix(t, "DECIMAL")
	}
	return "CAST(" + expr + " AS " + t + ")"
}

func (postgresDialect) Like(expr string, negate bool) string {
	if negate {
		return expr + " NOT LIKE ?"
	}
	return expr + " LIKE ?"
}

func (postgresDialect) Regexp(expr string, negate bool) string {
	if negate {
		return expr + " !~ ?"
	}
	return expr + " ~ ?"
}

func (postgresDialect) OrderByList(column string, n int) string {
	return caseOrdering(column, n)
}

func (postgresDialect) EscapeLike(s string) string { return escapeLike(s) }

func (postgresDialect) Returning(column string) string {
	return " RETURNING " + column
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) Rebind(sql string) string { return sql }

func (sqliteDialect) DatePart(unit DateUnit, column string) string {
	part := func(format string) string {
		return "CAST(strftime('" + format + "', " + column + ") AS INTEGER)"
	}
	switch unit {
	case UnitYear:
		return part("%Y")
	case UnitMonth:
		return part("%m")
	case UnitWeek:
		return part("%W")
	case UnitDayOfYear:
		return part("%j")
	case UnitDay:
		return part("%d")
	case UnitDayOfWeek:
		return "(" + part("%w") + " + 1)"
	case UnitDayOfWeekISO:
		return "((" + part("%w") + " + 6) % 7 + 1)"
	case UnitHour:
		return part("%H")
	case UnitMinute:
		return part("%M")
	default:
		return part("%S")
	}
}

func (sqliteDialect) Cast(expr, castType string) string {
	t := NormalizeCast(castType)
	switch {
	case t == "CHAR", t == "DATE", t == "DATETIME", t == "TIME":
		return expr
	case t == "SIGNED", t == "UNSIGNED":
		t = "INTEGER"
	case t == "BINARY":
		t = "BLOB"
	case strings.HasPrefix(t, "DECIMAL"), strings.HasPrefix(t, "NUMERIC"):
		t = "NUMERIC"
	}
	return "CAST(" + expr + " AS " + t + ")"
}

func (sqliteDialect) Like(expr string, negate bool) string {
	if negate {
		return expr + ` NOT LIKE ? ESCAPE '\'`
	}
	return expr + ` LIKE ? ESCAPE '\'`
}

func (sqliteDialect) Regexp(expr string, negate bool) string {
	if negate {
		return expr + " NOT REGEXP ?"
	}
	return expr + " REGEXP ?"
}

func (sqliteDialect) OrderByList(column string, n int) string {
	return caseOrdering(column, n)
}

func (sqliteDialect) EscapeLike(s string) string { return escapeLike(s) }

func (sqliteDialect) Returning(string) string { return "" }

// caseOrdering orders rows by their position in a placeholder list
func caseOrdering(column string, n int) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, " WHEN ? THEN %d", i)
	}
	fmt.Fprintf(&b, " ELSE %d END", n)
	return b.String()
}
