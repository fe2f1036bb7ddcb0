package commands

import (
	"fmt"
	"sort"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/tablequery/internal/cli/ui"
	"github.com/conduit-lang/tablequery/internal/orm/item"
)

// NewGetCommand creates the get command
func NewGetCommand(flags *globalFlags) *cobra.Command {
	var (
		by     string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "get <id|value>",
		Short: "Show one item by id or by a cache-key column",
		Example: `  tablequery get 42
  tablequery get --by slug hello-world`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			value := parseID(args[0])
			var it *item.Item
			if by != "" {
				it, err = e.table.GetItemByColumn(cmd.Context(), by, value)
			} else {
				it, err = e.table.GetItemByID(cmd.Context(), value)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, it)
			}
			renderItem(cmd, it, flags.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "cache-key column to look the value up in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// NewAddCommand creates the add command
func NewAddCommand(flags *globalFlags) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Insert an item",
		Example: `  tablequery add --set title="Hello world" --set status=publish --set color=blue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(set)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.table.AddItem(cmd.Context(), data)
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("added %s %v", e.schema.Table().ItemName, id), flags.noColor)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "column or metadata value as key=value (repeatable)")
	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand(flags *globalFlags) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Change columns and metadata of an item",
		Example: `  tablequery update 42 --set status=publish`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseAssignments(set)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.table.UpdateItem(cmd.Context(), parseID(args[0]), data)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			ui.WriteSuccess(w, fmt.Sprintf("updated %s %s", e.schema.Table().ItemName, args[0]), flags.noColor)

			fields := make([]string, 0, len(res.Changes))
			for f := range res.Changes {
				fields = append(fields, f)
			}
			sort.Strings(fields)

			kv := ui.NewKeyValueTable(w, flags.noColor)
			for _, f := range fields {
				change := res.Changes[f]
				kv.AddRow(f, ui.FormatValue(change[0])+" → "+ui.FormatValue(change[1]))
			}
			for _, key := range res.Meta {
				kv.AddRow(key, "(meta)")
			}
			kv.Render()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "column or metadata value as key=value (repeatable)")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Delete item %s?", args[0]),
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}

			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.table.DeleteItem(cmd.Context(), parseID(args[0])); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("deleted %s %s", e.schema.Table().ItemName, args[0]), flags.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// NewCopyCommand creates the copy command
func NewCopyCommand(flags *globalFlags) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:     "copy <id>",
		Short:   "Add a copy of an item",
		Example: `  tablequery copy 42 --set title="Hello again"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseAssignments(set)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.table.CopyItem(cmd.Context(), parseID(args[0]), overrides)
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("copied %s %s to %v", e.schema.Table().ItemName, args[0], id), flags.noColor)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "override as key=value (repeatable)")
	return cmd
}
