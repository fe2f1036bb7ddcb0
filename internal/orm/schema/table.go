package schema

import "strings"

// Default column names of the extra-metadata side table
const (
	DefaultMetaKeyColumn   = "meta_key"
	DefaultMetaValueColumn = "meta_value"
	DefaultMetaIDColumn    = "meta_id"
)

// Table describes the physical table a schema is bound to
type Table struct {
	Name     string
	Alias    string
	ItemName string
	Meta     *MetaTable
}

// MetaTable describes a key/value side table holding extra item data
type MetaTable struct {
	Name        string
	ForeignKey  string
	KeyColumn   string
	ValueColumn string
	IDColumn    string
}

// CacheGroup is the cache namespace holding full item rows
func (t Table) CacheGroup() string {
	return t.Name
}

// CacheGroupBy is the cache namespace for id lookups by a cache-key column
func (t Table) CacheGroupBy(column string) string {
	return t.Name + "-by-" + column
}

// MetaCacheGroup is the cache namespace holding extra-metadata rows
func (t Table) MetaCacheGroup() string {
	return t.Name + "meta"
}

// normalize sanitizes names and fills defaults
func (t *Table) normalize() error {
	name, err := SanitizeName(t.Name)
	if err != nil {
		return err
	}
	t.Name = name

	if t.Alias == "" {
		t.Alias = defaultAlias(name)
	} else if t.Alias, err = SanitizeName(t.Alias); err != nil {
		return err
	}

	if t.ItemName == "" {
		t.ItemName = strings.TrimSuffix(name, "s")
	}

	if t.Meta != nil {
		return t.Meta.normalize(t.ItemName)
	}
	return nil
}

func (m *MetaTable) normalize(itemName string) error {
	var err error
	if m.Name, err = SanitizeName(m.Name); err != nil {
		return err
	}
	if m.ForeignKey == "" {
		m.ForeignKey = itemName + "_id"
	}
	if m.KeyColumn == "" {
		m.KeyColumn = DefaultMetaKeyColumn
	}
	if m.ValueColumn == "" {
		m.ValueColumn = DefaultMetaValueColumn
	}
	if m.IDColumn == "" {
		m.IDColumn = DefaultMetaIDColumn
	}
	for _, p := range []*string{&m.ForeignKey, &m.KeyColumn, &m.ValueColumn, &m.IDColumn} {
		if *p, err = SanitizeName(*p); err != nil {
			return err
		}
	}
	return nil
}

// defaultAlias takes the first letter of every underscore separated word
func defaultAlias(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part != "" {
			b.WriteByte(part[0])
		}
	}
	return b.String()
}
