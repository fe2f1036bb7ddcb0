package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablequery/internal/orm/query"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"status=publish",
		"number=10",
		"status__in=[draft, publish]",
		"no_found_rows=false",
		"title=",
		"search=a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"status":        "publish",
		"number":        10,
		"status__in":    []interface{}{"draft", "publish"},
		"no_found_rows": false,
		"title":         "",
		"search":        "a=b",
	}, got)
}

func TestParseAssignments_Invalid(t *testing.T) {
	_, err := parseAssignments([]string{"status"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestReadVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
status__in: [active, pending]
orderby: created
number: 10
created_query:
  after: "2024-01-01"
`), 0o644))

	vars, err := readVars(path, []string{"number=5"})
	require.NoError(t, err)

	assert.Equal(t, query.Vars{
		"status__in":    []interface{}{"active", "pending"},
		"orderby":       "created",
		"number":        5,
		"created_query": map[string]interface{}{"after": "2024-01-01"},
	}, vars)
}

func TestReadVars_MissingFile(t *testing.T) {
	_, err := readVars(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}
