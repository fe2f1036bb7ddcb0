package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a malformed schema. A table built from it
	// refuses every operation.
	ErrConfiguration = errors.New("schema configuration error")

	// ErrNoColumns indicates a schema without columns
	ErrNoColumns = errors.New("schema has no columns")
)

// DefaultPrimaryColumn is assumed when no column is flagged primary
const DefaultPrimaryColumn = "id"

// Index describes one table index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// Predicate selects columns
type Predicate func(*Column) bool

// Schema is the ordered set of columns and indexes of one table
type Schema struct {
	table   Table
	columns []*Column
	byName  map[string]*Column
	aliases map[string]string
	indexes []Index
	primary *Column
}

// New builds a schema. Columns are copied, so later changes to the
// arguments do not leak into the schema.
func New(table Table, columns []Column, indexes ...Index) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoColumns)
	}
	if err := table.normalize(); err != nil {
		return nil, fmt.Errorf("table %q: %w", table.Name, err)
	}

	s := &Schema{
		table:   table,
		columns: make([]*Column, 0, len(columns)),
		byName:  make(map[string]*Column, len(columns)),
		aliases: make(map[string]string),
	}

	for i := range columns {
		col := columns[i].clone()

		name, err := SanitizeName(col.Name)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		col.Name = name

		if _, exists := s.byName[name]; exists {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrConfiguration, name)
		}
		if col.Primary {
			if s.primary != nil {
				return nil, fmt.Errorf("%w: columns %q and %q are both primary", ErrConfiguration, s.primary.Name, name)
			}
			s.primary = col
		}

		s.columns = append(s.columns, col)
		s.byName[name] = col
	}

	// A column named "id" stands in for an undeclared primary key
	if s.primary == nil {
		if col, ok := s.byName[DefaultPrimaryColumn]; ok {
			col.Primary = true
			s.primary = col
		}
	}
	if s.primary != nil {
		s.primary.CacheKey = true
		s.primary.Sortable = true
		s.primary.In = true
		s.primary.NotIn = true
	}

	for _, col := range s.columns {
		for _, alias := range col.Aliases {
			alias, err := SanitizeName(alias)
			if err != nil {
				return nil, fmt.Errorf("column %q alias: %w", col.Name, err)
			}
			if _, exists := s.byName[alias]; exists {
				return nil, fmt.Errorf("%w: alias %q shadows a column", ErrConfiguration, alias)
			}
			if owner, exists := s.aliases[alias]; exists && owner != col.Name {
				return nil, fmt.Errorf("%w: alias %q used by %q and %q", ErrConfiguration, alias, owner, col.Name)
			}
			s.aliases[alias] = col.Name
		}
	}

	for _, idx := range indexes {
		for _, name := range idx.Columns {
			if _, ok := s.byName[name]; !ok {
				return nil, fmt.Errorf("%w: index %q references unknown column %q", ErrConfiguration, idx.Name, name)
			}
		}
		idx.Columns = append([]string(nil), idx.Columns...)
		s.indexes = append(s.indexes, idx)
	}

	return s, nil
}

// Table returns the table descriptor
func (s *Schema) Table() Table {
	return s.table
}

// Columns returns all columns in declaration order
func (s *Schema) Columns() []*Column {
	return append([]*Column(nil), s.columns...)
}

// Column looks a column up by name or alias
func (s *Schema) Column(name string) (*Column, bool) {
	if col, ok := s.byName[name]; ok {
		return col, true
	}
	if canonical, ok := s.aliases[name]; ok {
		return s.byName[canonical], true
	}
	return nil, false
}

// CanonicalName resolves an alias to its column name. Unknown names are
// returned unchanged.
func (s *Schema) CanonicalName(name string) string {
	if canonical, ok := s.aliases[name]; ok {
		return canonical
	}
	return name
}

// ColumnsWhere returns the columns matching pred, in declaration order
func (s *Schema) ColumnsWhere(pred Predicate) []*Column {
	var out []*Column
	for _, col := range s.columns {
		if pred == nil || pred(col) {
			out = append(out, col)
		}
	}
	return out
}

// ColumnNames returns the names of the columns matching pred
func (s *Schema) ColumnNames(pred Predicate) []string {
	cols := s.ColumnsWhere(pred)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

// PrimaryColumn returns the primary column, if the schema has one
func (s *Schema) PrimaryColumn() (*Column, bool) {
	return s.primary, s.primary != nil
}

// PrimaryColumnName returns the primary column name, "id" when none is set
func (s *Schema) PrimaryColumnName() string {
	if s.primary == nil {
		return DefaultPrimaryColumn
	}
	return s.primary.Name
}

// CreatedColumn returns the first column flagged as creation timestamp
func (s *Schema) CreatedColumn() (*Column, bool) {
	return s.first(func(c *Column) bool { return c.Created })
}

// ModifiedColumn returns the first column flagged as modification timestamp
func (s *Schema) ModifiedColumn() (*Column, bool) {
	return s.first(func(c *Column) bool { return c.Modified })
}

// DateColumns returns the columns usable in date queries
func (s *Schema) DateColumns() []*Column {
	return s.ColumnsWhere(IsDateQuery)
}

// CacheKeyColumns returns the columns with their own id-lookup cache group
func (s *Schema) CacheKeyColumns() []*Column {
	return s.ColumnsWhere(IsCacheKey)
}

// Indexes returns the index descriptors
func (s *Schema) Indexes() []Index {
	return append([]Index(nil), s.indexes...)
}

func (s *Schema) first(pred Predicate) (*Column, bool) {
	for _, col := range s.columns {
		if pred(col) {
			return col, true
		}
	}
	return nil, false
}

// Column predicates

func IsSortable(c *Column) bool { return c.Sortable }
func IsSearchable(c *Column) bool { return c.Searchable }
func SupportsIn(c *Column) bool { return c.In }
func SupportsNotIn(c *Column) bool { return c.NotIn }
func IsDateQuery(c *Column) bool { return c.DateQuery }
func IsCacheKey(c *Column) bool { return c.CacheKey }
func IsUUID(c *Column) bool { return c.UUID }
func HasTransitions(c *Column) bool { return c.Transitions }

// All matches columns satisfying every predicate
func All(preds ...Predicate) Predicate {
	return func(c *Column) bool {
		for _, p := range preds {
			if !p(c) {
				return false
			}
		}
		return true
	}
}

// Any matches columns satisfying at least one predicate
func Any(preds ...Predicate) Predicate {
	return func(c *Column) bool {
		for _, p := range preds {
			if p(c) {
				return true
			}
		}
		return false
	}
}
