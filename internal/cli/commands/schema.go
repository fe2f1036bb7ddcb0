package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablequery/internal/cli/ui"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand(flags *globalFlags) *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the columns of the configured table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, schemaPath)
			if err != nil {
				return err
			}
			s, err := schema.LoadFile(cfg.Schema)
			if err != nil {
				return err
			}

			renderSchema(cmd, s, flags.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (overrides the config)")
	return cmd
}

func renderSchema(cmd *cobra.Command, s *schema.Schema, noColor bool) {
	w := cmd.OutOrStdout()
	t := s.Table()

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("table", t.Name+" "+t.Alias)
	kv.AddRow("item", t.ItemName)
	if t.Meta != nil {
		kv.AddRow("meta", t.Meta.Name)
	}
	kv.Render()
	fmt.Fprintln(w)

	table := ui.NewTable(w, []string{"column", "type", "default", "flags"}, noColor)
	for _, col := range s.Columns() {
		typ := col.Type
		if col.Length != "" {
			typ += "(" + col.Length + ")"
		}
		def := ""
		if col.Default != nil {
			def = ui.FormatValue(col.Default)
		}
		table.AddRow(col.Name, typ, def, strings.Join(columnFlags(col), " "))
	}
	table.Render()
}

func columnFlags(col *schema.Column) []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(col.Primary, "primary")
	add(col.Unsigned, "unsigned")
	add(col.AllowNull, "null")
	add(col.UUID, "uuid")
	add(col.Created, "created")
	add(col.Modified, "modified")
	add(col.Searchable, "search")
	add(col.Sortable, "sort")
	add(col.DateQuery, "date")
	add(col.In, "in")
	add(col.NotIn, "not_in")
	add(col.CacheKey, "cache_key")
	add(col.Transitions, "transitions")
	for _, alias := range col.Aliases {
		out = append(out, "alias:"+alias)
	}
	return out
}
