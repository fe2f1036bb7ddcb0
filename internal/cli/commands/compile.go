package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablequery/internal/cli/ui"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// queryFlags are the flags of commands taking query variables
type queryFlags struct {
	vars     []string
	varsFile string
	asJSON   bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "query variable as key=value (repeatable)")
	cmd.Flags().StringVarP(&f.varsFile, "vars", "f", "", "YAML file of query variables")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON")
}

// compiled is the JSON form of a compiled query
type compiled struct {
	SQL         string        `json:"sql"`
	Args        []interface{} `json:"args"`
	CountSQL    string        `json:"count_sql,omitempty"`
	CountArgs   []interface{} `json:"count_args,omitempty"`
	Fingerprint string        `json:"fingerprint"`
}

// NewCompileCommand creates the compile command. It needs the schema only.
func NewCompileCommand(flags *globalFlags) *cobra.Command {
	var (
		qf          queryFlags
		schemaPath  string
		dialectName string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL a set of query variables compiles to",
		Example: `  tablequery compile --var status__in=[active,pending] --var orderby=created --var order=ASC
  tablequery compile -f vars.yaml --dialect postgres --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, schemaPath)
			if err != nil {
				return err
			}
			if dialectName != "" {
				cfg.Database.Dialect = dialectName
			}
			d, err := dialect(cfg)
			if err != nil {
				return err
			}

			s, err := schema.LoadFile(cfg.Schema)
			if err != nil {
				return err
			}
			compiler, err := query.NewCompiler(s, query.WithDialect(d))
			if err != nil {
				return err
			}

			vars, err := readVars(qf.varsFile, qf.vars)
			if err != nil {
				return err
			}
			warnUnknown(cmd, compiler, vars, flags.noColor)

			q, err := compiler.Compile(vars)
			if err != nil {
				return err
			}
			fp, err := q.Fingerprint()
			if err != nil {
				return err
			}
			req := q.Request()

			out := compiled{
				SQL:         req.SQL,
				Args:        req.Args,
				CountSQL:    req.CountSQL,
				CountArgs:   req.CountArgs,
				Fingerprint: fp,
			}
			if out.Args == nil {
				out.Args = []interface{}{}
			}
			if qf.asJSON {
				return printJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.SQL)
			kv := ui.NewKeyValueTable(w, flags.noColor)
			kv.AddRow("args", formatArgs(out.Args))
			if out.CountSQL != "" {
				kv.AddRow("count", out.CountSQL)
				kv.AddRow("count args", formatArgs(out.CountArgs))
			}
			kv.AddRow("fingerprint", out.Fingerprint)
			kv.Render()
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (overrides the config)")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "SQL dialect: mysql, postgres or sqlite")
	return cmd
}

// warnUnknown prints a warning with suggestions for every variable the
// compiler ignores
func warnUnknown(cmd *cobra.Command, c *query.Compiler, vars query.Vars, noColor bool) {
	unknown := c.UnknownVars(vars)
	if len(unknown) == 0 {
		return
	}
	known := c.KnownVars()
	for _, name := range unknown {
		fmt.Fprint(cmd.ErrOrStderr(), ui.UnknownVariableWarning(name, ui.FindSimilar(name, known), noColor))
	}
}

func formatArgs(args []interface{}) string {
	if len(args) == 0 {
		return "none"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(b)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
