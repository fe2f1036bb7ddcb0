package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/tablequery/internal/cli/config"
	"github.com/conduit-lang/tablequery/internal/cli/ui"
)

// exampleSchema is written next to a new configuration
const exampleSchema = `table:
  name: posts
  item_name: post
  meta:
    name: postmeta
columns:
  - name: id
    type: bigint
    unsigned: true
    primary: true
  - name: title
    type: varchar
    length: "255"
    searchable: true
    sortable: true
  - name: slug
    type: varchar
    length: "200"
    cache_key: true
  - name: status
    type: varchar
    length: "20"
    default: draft
    sortable: true
    in: true
    not_in: true
    transitions: true
  - name: created
    type: datetime
    default: CURRENT_TIMESTAMP
    created: true
    sortable: true
    date_query: true
  - name: modified
    type: datetime
    default: CURRENT_TIMESTAMP
    modified: true
    date_query: true
`

// initAnswers are the values asked for by init
type initAnswers struct {
	Driver string
	DSN    string
	Cache  string
	Schema string
}

// fileConfig is the layout of a written tablequery.yaml
type fileConfig struct {
	Schema   string `yaml:"schema"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Cache struct {
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
	} `yaml:"cache"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// NewInitCommand creates the init command
func NewInitCommand(flags *globalFlags) *cobra.Command {
	var (
		defaults bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a tablequery.yaml and an example schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			answers := initAnswers{
				Driver: "sqlite3",
				DSN:    "file:tablequery.db",
				Cache:  config.BackendMemory,
				Schema: "schema.yaml",
			}
			if !defaults {
				if err := askInit(&answers); err != nil {
					return err
				}
			}

			written, err := writeInit(dir, answers, force)
			if err != nil {
				return err
			}
			for _, path := range written {
				ui.WriteSuccess(cmd.OutOrStdout(), "wrote "+path, flags.noColor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "use defaults instead of prompting")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func askInit(a *initAnswers) error {
	questions := []*survey.Question{
		{
			Name: "driver",
			Prompt: &survey.Select{
				Message: "Database driver:",
				Options: []string{"sqlite3", "pgx", "postgres"},
				Default: a.Driver,
			},
		},
		{
			Name:     "dsn",
			Prompt:   &survey.Input{Message: "Data source name:", Default: a.DSN},
			Validate: survey.Required,
		},
		{
			Name: "cache",
			Prompt: &survey.Select{
				Message: "Cache backend:",
				Options: []string{config.BackendMemory, config.BackendRedis, config.BackendNone},
				Default: a.Cache,
			},
		},
		{
			Name:     "schema",
			Prompt:   &survey.Input{Message: "Schema file:", Default: a.Schema},
			Validate: survey.Required,
		},
	}
	return survey.Ask(questions, a)
}

// writeInit writes the configuration and, when missing, the example
// schema. It returns the paths written.
func writeInit(dir string, a initAnswers, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return nil, fmt.Errorf("%s already exists, use --force to overwrite", cfgPath)
	}

	var fc fileConfig
	fc.Schema = a.Schema
	fc.Database.Driver = a.Driver
	fc.Database.DSN = a.DSN
	fc.Cache.Backend = a.Cache
	fc.Cache.TTL = "5m"
	fc.Log.Level = "info"

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		return nil, err
	}
	written := []string{cfgPath}

	schemaPath := a.Schema
	if !filepath.IsAbs(schemaPath) {
		schemaPath = filepath.Join(dir, schemaPath)
	}
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		if err := os.WriteFile(schemaPath, []byte(exampleSchema), 0o644); err != nil {
			return written, err
		}
		written = append(written, schemaPath)
	}
	return written, nil
}
