// Package ddl renders CREATE statements for the tables a schema describes:
// the item table, the metadata side table and the declared indexes.
package ddl

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Generator renders DDL for one dialect
type Generator struct {
	dialect query.Dialect
}

// New creates a generator, MySQL when d is nil
func New(d query.Dialect) *Generator {
	if d == nil {
		d = query.MySQL
	}
	return &Generator{dialect: d}
}

func (g *Generator) is(name string) bool {
	return g.dialect.Name() == name
}

// Statements returns every statement needed to create the tables of s
func (g *Generator) Statements(s *schema.Schema) []string {
	out := []string{g.CreateTable(s)}
	if meta := g.CreateMetaTable(s); meta != "" {
		out = append(out, meta)
	}
	return append(out, g.CreateIndexes(s)...)
}

// CreateTable renders the item table
func (g *Generator) CreateTable(s *schema.Schema) string {
	cols := s.Columns()
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = g.columnDefinition(col)
	}
	return createTable(s.Table().Name, defs)
}

// CreateMetaTable renders the metadata side table, "" without one
func (g *Generator) CreateMetaTable(s *schema.Schema) string {
	m := s.Table().Meta
	if m == nil {
		return ""
	}

	fkType := g.bigint(true)
	if col, ok := s.PrimaryColumn(); ok {
		fkType = g.ColumnType(col)
	}

	return createTable(m.Name, []string{
		g.serial(m.IDColumn),
		m.ForeignKey + " " + fkType + " NOT NULL",
		m.KeyColumn + " " + g.varchar(255) + " NOT NULL",
		m.ValueColumn + " " + g.longText(),
	})
}

// CreateIndexes renders the declared indexes and those of the metadata
// table. Primary indexes are part of the column definitions.
func (g *Generator) CreateIndexes(s *schema.Schema) []string {
	table := s.Table()

	var out []string
	for _, idx := range s.Indexes() {
		if idx.Primary {
			continue
		}
		out = append(out, g.createIndex(table.Name, idx.Name, idx.Unique, idx.Columns))
	}

	if m := table.Meta; m != nil {
		out = append(out,
			g.createIndex(m.Name, m.ForeignKey, false, []string{m.ForeignKey}),
			g.createIndex(m.Name, m.KeyColumn, false, []string{m.KeyColumn}),
		)
	}
	return out
}

// DropTables renders statements removing the tables of s
func (g *Generator) DropTables(s *schema.Schema) []string {
	out := []string{"DROP TABLE IF EXISTS " + s.Table().Name + ";"}
	if m := s.Table().Meta; m != nil {
		out = append(out, "DROP TABLE IF EXISTS "+m.Name+";")
	}
	return out
}

func createTable(name string, defs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
	for i, def := range defs {
		b.WriteString("  " + def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}

func (g *Generator) createIndex(table, name string, unique bool, columns []string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	// MySQL has no IF NOT EXISTS for indexes
	exists := " IF NOT EXISTS"
	if g.is(query.MySQL.Name()) {
		exists = ""
	}
	return fmt.Sprintf("CREATE %s%s idx_%s_%s ON %s (%s);",
		kind, exists, table, name, table, strings.Join(columns, ", "))
}

func (g *Generator) columnDefinition(col *schema.Column) string {
	if col.Primary && col.Family() == schema.FamilyInteger {
		return g.serial(col.Name)
	}

	parts := []string{col.Name, g.ColumnType(col)}
	if col.Primary {
		return strings.Join(append(parts, "NOT NULL PRIMARY KEY"), " ")
	}

	if col.AllowNull {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if def, ok := g.defaultClause(col); ok {
		parts = append(parts, def)
	}
	return strings.Join(parts, " ")
}

// serial renders an auto-incrementing integer primary key
func (g *Generator) serial(name string) string {
	switch {
	case g.is(query.Postgres.Name()):
		return name + " BIGSERIAL PRIMARY KEY"
	case g.is(query.SQLite.Name()):
		return name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return name + " BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
}

func (g *Generator) defaultClause(col *schema.Column) (string, bool) {
	if col.Default == nil {
		return "", false
	}

	switch col.Family() {
	case schema.FamilyBinary:
		return "", false
	case schema.FamilyText:
		// MySQL rejects literal defaults on TEXT columns
		if g.is(query.MySQL.Name()) && strings.Contains(strings.ToLower(col.Type), "text") {
			return "", false
		}
	}

	if col.IsNumeric() {
		if n, ok := validation.Numeric(col.Default, -1, false); ok {
			return "DEFAULT " + n, true
		}
		return "", false
	}

	v, ok := validation.String(col.Default)
	if !ok {
		return "", false
	}
	if v == validation.CurrentTimestamp && col.Family() == schema.FamilyDatetime {
		return "DEFAULT CURRENT_TIMESTAMP", true
	}
	return "DEFAULT '" + strings.ReplaceAll(v, "'", "''") + "'", true
}

// ColumnType maps a column's declared type to the dialect
func (g *Generator) ColumnType(col *schema.Column) string {
	typ := strings.ToLower(strings.TrimSpace(col.Type))

	switch {
	case g.is(query.SQLite.Name()):
		return sqliteType(col.Family())
	case g.is(query.Postgres.Name()):
		return postgresType(col, typ)
	default:
		return mysqlType(col, typ)
	}
}

func sqliteType(f schema.TypeFamily) string {
	switch f {
	case schema.FamilyInteger:
		return "INTEGER"
	case schema.FamilyDecimal:
		return "NUMERIC"
	case schema.FamilyFloat:
		return "REAL"
	case schema.FamilyBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func postgresType(col *schema.Column, typ string) string {
	switch col.Family() {
	case schema.FamilyInteger:
		switch typ {
		case "tinyint", "smallint":
			return "SMALLINT"
		case "bigint", "bigserial":
			return "BIGINT"
		default:
			return "INTEGER"
		}
	case schema.FamilyDecimal:
		return withLength("NUMERIC", col.Length)
	case schema.FamilyFloat:
		if typ == "float" || typ == "real" {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case schema.FamilyDatetime:
		if typ == "timestamptz" {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case schema.FamilyDate:
		return "DATE"
	case schema.FamilyTime:
		return "TIME"
	case schema.FamilyBinary:
		return "BYTEA"
	}

	switch typ {
	case "varchar", "char":
		return withLength(strings.ToUpper(typ), lengthOr(col.Length, "255"))
	default:
		return "TEXT"
	}
}

func mysqlType(col *schema.Column, typ string) string {
	switch typ {
	case "serial", "bigserial":
		typ = "bigint"
	case "timestamptz":
		typ = "timestamp"
	case "bytea":
		typ = "blob"
	case "double precision":
		typ = "double"
	}

	length := col.Length
	if typ == "varchar" || typ == "varbinary" {
		length = lengthOr(length, "255")
	}

	out := withLength(strings.ToUpper(typ), length)
	if col.Unsigned && col.IsNumeric() {
		out += " UNSIGNED"
	}
	return out
}

func (g *Generator) bigint(unsigned bool) string {
	if g.is(query.MySQL.Name()) && unsigned {
		return "BIGINT UNSIGNED"
	}
	if g.is(query.SQLite.Name()) {
		return "INTEGER"
	}
	return "BIGINT"
}

func (g *Generator) varchar(n int) string {
	if g.is(query.SQLite.Name()) {
		return "TEXT"
	}
	return fmt.Sprintf("VARCHAR(%d)", n)
}

func (g *Generator) longText() string {
	if g.is(query.MySQL.Name()) {
		return "LONGTEXT"
	}
	return "TEXT"
}

func withLength(typ, length string) string {
	if length == "" {
		return typ
	}
	return typ + "(" + length + ")"
}

func lengthOr(length, fallback string) string {
	if length == "" {
		return fallback
	}
	return length
}
