package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablequery/internal/cli/ui"
	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/table"
)

// NewQueryCommand creates the query command
func NewQueryCommand(flags *globalFlags) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query and print the matching items",
		Example: `  tablequery query --var status=publish --var number=10
  tablequery query --var fields=ids --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			vars, err := readVars(qf.varsFile, qf.vars)
			if err != nil {
				return err
			}
			warnUnknown(cmd, e.table.Compiler(), vars, flags.noColor)

			res, err := e.table.Query(cmd.Context(), vars)
			if err != nil {
				return err
			}

			if qf.asJSON {
				return printJSON(cmd, queryJSON(res))
			}
			renderResult(cmd, e.schema.ColumnNames(nil), res, flags.noColor)
			return nil
		},
	}

	qf.register(cmd)
	return cmd
}

// NewCountCommand creates the count command
func NewCountCommand(flags *globalFlags) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the items matching a query",
		Example: `  tablequery count --var status=publish
  tablequery count --var groupby=status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			vars, err := readVars(qf.varsFile, qf.vars)
			if err != nil {
				return err
			}
			warnUnknown(cmd, e.table.Compiler(), vars, flags.noColor)
			vars["count"] = true

			res, err := e.table.Query(cmd.Context(), vars)
			if err != nil {
				return err
			}

			if qf.asJSON {
				return printJSON(cmd, map[string]interface{}{"count": res.Count, "groups": res.Groups})
			}
			if len(res.Groups) > 0 {
				renderRecords(cmd, groupColumns(res.Groups), res.Groups, flags.noColor)
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Count)
			return nil
		},
	}

	qf.register(cmd)
	return cmd
}

func queryJSON(res *table.Result) map[string]interface{} {
	out := map[string]interface{}{
		"ids":         res.IDs,
		"found_count": res.FoundCount,
		"max_pages":   res.MaxPages,
		"cached":      res.Cached,
	}
	switch {
	case res.Records != nil:
		out["items"] = res.Records
	case res.Items != nil:
		out["items"] = res.Items
	default:
		out["items"] = []interface{}{}
	}
	return out
}

// renderResult prints the items of a result in schema column order
func renderResult(cmd *cobra.Command, columns []string, res *table.Result, noColor bool) {
	w := cmd.OutOrStdout()

	records := res.Records
	if records == nil {
		records = make([]map[string]interface{}, len(res.Items))
		for i, it := range res.Items {
			records[i] = it.Map()
		}
	}

	if len(records) == 0 {
		fmt.Fprint(w, ui.FormatError(ui.ErrorOptions{Level: ui.ErrorLevelInfo, Problem: "no items found", NoColor: noColor}))
	} else {
		renderRecords(cmd, presentColumns(columns, records), records, noColor)
	}

	fmt.Fprintln(w)
	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("found", strconv.Itoa(res.FoundCount))
	kv.AddRow("max pages", strconv.Itoa(res.MaxPages))
	kv.AddRow("cached", strconv.FormatBool(res.Cached))
	kv.Render()
}

func renderRecords(cmd *cobra.Command, columns []string, records []map[string]interface{}, noColor bool) {
	t := ui.NewTable(cmd.OutOrStdout(), columns, noColor)
	for _, r := range records {
		t.AddRecord(r)
	}
	t.Render()
}

// presentColumns keeps the columns at least one record holds
func presentColumns(columns []string, records []map[string]interface{}) []string {
	var out []string
	for _, c := range columns {
		for _, r := range records {
			if _, ok := r[c]; ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// groupColumns puts the grouped columns first and the count last
func groupColumns(groups []map[string]interface{}) []string {
	var out []string
	for k := range groups[0] {
		if k != "count" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return append(out, "count")
}

func renderItem(cmd *cobra.Command, it *item.Item, noColor bool) {
	kv := ui.NewKeyValueTable(cmd.OutOrStdout(), noColor)
	for _, f := range it.Fields() {
		v, _ := it.Get(f)
		kv.AddRow(f, ui.FormatValue(v))
	}
	kv.Render()
}
