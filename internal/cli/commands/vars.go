package commands

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/tablequery/internal/orm/query"
)

// parseAssignments turns "key=value" arguments into a map. Values are
// read as YAML scalars or flow collections, so "10" is a number and
// "[a, b]" a list.
func parseAssignments(args []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = parseValue(raw)
	}
	return out, nil
}

func parseValue(raw string) interface{} {
	if raw == "" {
		return ""
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// readVars loads query variables from a YAML file and applies the
// assignments on top
func readVars(path string, assignments []string) (query.Vars, error) {
	vars := query.Vars{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read vars: %w", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("decode vars %s: %w", path, err)
		}
	}

	set, err := parseAssignments(assignments)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		vars[k] = v
	}
	return vars, nil
}

// parseID reads an id argument the way parseValue reads values
func parseID(arg string) interface{} {
	return parseValue(arg)
}
