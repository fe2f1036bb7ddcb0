package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSchema is the YAML rendering of a schema
type fileSchema struct {
	Table   fileTable    `yaml:"table"`
	Columns []fileColumn `yaml:"columns"`
	Indexes []fileIndex  `yaml:"indexes"`
}

type fileTable struct {
	Name     string    `yaml:"name"`
	Alias    string    `yaml:"alias"`
	ItemName string    `yaml:"item_name"`
	Meta     *fileMeta `yaml:"meta"`
}

type fileMeta struct {
	Name        string `yaml:"name"`
	ForeignKey  string `yaml:"foreign_key"`
	KeyColumn   string `yaml:"key_column"`
	ValueColumn string `yaml:"value_column"`
	IDColumn    string `yaml:"id_column"`
}

type fileColumn struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	Length       string            `yaml:"length"`
	Unsigned     bool              `yaml:"unsigned"`
	AllowNull    bool              `yaml:"allow_null"`
	Default      interface{}       `yaml:"default"`
	Extra        string            `yaml:"extra"`
	Pattern      string            `yaml:"pattern"`
	Decimals     *int              `yaml:"decimals"`
	Primary      bool              `yaml:"primary"`
	Created      bool              `yaml:"created"`
	Modified     bool              `yaml:"modified"`
	UUID         bool              `yaml:"uuid"`
	Searchable   bool              `yaml:"searchable"`
	Sortable     bool              `yaml:"sortable"`
	DateQuery    bool              `yaml:"date_query"`
	In           bool              `yaml:"in"`
	NotIn        bool              `yaml:"not_in"`
	CacheKey     bool              `yaml:"cache_key"`
	Transitions  bool              `yaml:"transitions"`
	Capabilities map[string]string `yaml:"capabilities"`
	Aliases      []string          `yaml:"aliases"`
}

type fileIndex struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
	Primary bool     `yaml:"primary"`
}

// Load reads a YAML schema definition
func Load(r io.Reader) (*Schema, error) {
	var fs fileSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fs); err != nil {
		return nil, fmt.Errorf("%w: decode schema: %v", ErrConfiguration, err)
	}

	table := Table{
		Name:     fs.Table.Name,
		Alias:    fs.Table.Alias,
		ItemName: fs.Table.ItemName,
	}
	if m := fs.Table.Meta; m != nil {
		table.Meta = &MetaTable{
			Name:        m.Name,
			ForeignKey:  m.ForeignKey,
			KeyColumn:   m.KeyColumn,
			ValueColumn: m.ValueColumn,
			IDColumn:    m.IDColumn,
		}
	}

	columns := make([]Column, 0, len(fs.Columns))
	for _, fc := range fs.Columns {
		col, err := fc.column()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	indexes := make([]Index, 0, len(fs.Indexes))
	for _, fi := range fs.Indexes {
		indexes = append(indexes, Index(fi))
	}

	return New(table, columns, indexes...)
}

// LoadFile reads a YAML schema definition from path
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func (fc fileColumn) column() (Column, error) {
	pattern, err := ParseValueKind(fc.Pattern)
	if err != nil {
		return Column{}, fmt.Errorf("%w: column %q: %v", ErrConfiguration, fc.Name, err)
	}

	col := Column{
		Name:        fc.Name,
		Type:        fc.Type,
		Length:      fc.Length,
		Unsigned:    fc.Unsigned,
		AllowNull:   fc.AllowNull,
		Default:     fc.Default,
		Extra:       fc.Extra,
		Pattern:     pattern,
		Decimals:    fc.Decimals,
		Primary:     fc.Primary,
		Created:     fc.Created,
		Modified:    fc.Modified,
		UUID:        fc.UUID,
		Searchable:  fc.Searchable,
		Sortable:    fc.Sortable,
		DateQuery:   fc.DateQuery,
		In:          fc.In,
		NotIn:       fc.NotIn,
		CacheKey:    fc.CacheKey,
		Transitions: fc.Transitions,
		Aliases:     fc.Aliases,
	}

	if len(fc.Capabilities) > 0 {
		col.Capabilities = make(map[Operation]string, len(fc.Capabilities))
		for opName, capability := range fc.Capabilities {
			op, err := ParseOperation(opName)
			if err != nil {
				return Column{}, fmt.Errorf("%w: column %q: %v", ErrConfiguration, fc.Name, err)
			}
			col.Capabilities[op] = capability
		}
	}

	return col, nil
}
