package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablequery/internal/cli/ui"
	"github.com/conduit-lang/tablequery/internal/orm/ddl"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// NewDDLCommand creates the ddl command
func NewDDLCommand(flags *globalFlags) *cobra.Command {
	var (
		schemaPath  string
		dialectName string
		apply       bool
		drop        bool
	)

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print or apply the CREATE statements for the configured table",
		Long: `Print the CREATE TABLE and CREATE INDEX statements for the table and its
metadata table. With --apply the statements run against the configured
database. Existing tables are left alone unless --drop is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, schemaPath)
			if err != nil {
				return err
			}
			s, err := schema.LoadFile(cfg.Schema)
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

			gen := ddl.New(d)
			var stmts []string
			if drop {
				stmts = append(stmts, gen.DropTables(s)...)
			}
			stmts = append(stmts, gen.Statements(s)...)

			w := cmd.OutOrStdout()
			if !apply {
				for _, stmt := range stmts {
					fmt.Fprintln(w, stmt)
				}
				return nil
			}

			logger, err := cfg.Log.NewLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gw, err := gateway.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Dialect,
				gateway.WithLogger(logger))
			if err != nil {
				return err
			}
			defer gw.Close()

			for _, stmt := range stmts {
				if _, err := gw.Exec(cmd.Context(), stmt); err != nil {
					return err
				}
			}
			ui.WriteSuccess(w, fmt.Sprintf("applied %d statements to %s", len(stmts), s.Table().Name), flags.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (overrides the config)")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "render for this dialect: mysql, postgres or sqlite")
	cmd.Flags().BoolVar(&apply, "apply", false, "run the statements against the database")
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the tables first")
	return cmd
}
