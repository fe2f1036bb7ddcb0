package query

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Recognized query variable keys
const (
	VarFields          = "fields"
	VarNumber          = "number"
	VarOffset          = "offset"
	VarOrderBy         = "orderby"
	VarOrder           = "order"
	VarGroupBy         = "groupby"
	VarCount           = "count"
	VarSearch          = "search"
	VarSearchColumns   = "search_columns"
	VarMetaQuery       = "meta_query"
	VarDateQuery       = "date_query"
	VarCompareQuery    = "compare_query"
	VarNoFoundRows     = "no_found_rows"
	VarUpdateItemCache = "update_item_cache"
	VarUpdateMetaCache = "update_meta_cache"
)

// Suffixes of per-column query variables
const (
	SuffixIn    = "__in"
	SuffixNotIn = "__not_in"
	SuffixQuery = "_query"
)

const (
	// DefaultNumber is the page size when the caller sets none
	DefaultNumber = 100

	// OrderByNone disables ordering
	OrderByNone = "none"

	sentinelBytes = 32
)

// Vars maps query variable names to values
type Vars map[string]interface{}

// Clone returns a shallow copy
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// newSentinel returns a random marker for "not set by the caller"
func newSentinel() (string, error) {
	b := make([]byte, sentinelBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate sentinel: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// defaultVars builds the defaults for a schema. Per-column filters are
// tagged with the sentinel so parsers skip them.
func defaultVars(s *schema.Schema, sentinel string) Vars {
	vars := Vars{
		VarFields:          "",
		VarNumber:          DefaultNumber,
		VarOffset:          0,
		VarOrderBy:         s.PrimaryColumnName(),
		VarOrder:           "DESC",
		VarGroupBy:         "",
		VarCount:           false,
		VarSearch:          "",
		VarSearchColumns:   []interface{}{},
		VarMetaQuery:       sentinel,
		VarDateQuery:       sentinel,
		VarCompareQuery:    sentinel,
		VarNoFoundRows:     true,
		VarUpdateItemCache: true,
		VarUpdateMetaCache: true,
	}

	for _, col := range s.Columns() {
		vars[col.Name] = sentinel
		if col.In {
			vars[col.Name+SuffixIn] = sentinel
		}
		if col.NotIn {
			vars[col.Name+SuffixNotIn] = sentinel
		}
		if col.DateQuery {
			vars[col.Name+SuffixQuery] = sentinel
		}
	}
	return vars
}

// canonicalKey rewrites a column alias in a variable name
func canonicalKey(s *schema.Schema, key string) string {
	for _, suffix := range []string{SuffixNotIn, SuffixIn, SuffixQuery} {
		if base, ok := strings.CutSuffix(key, suffix); ok {
			if _, exists := s.Column(base); exists {
				return s.CanonicalName(base) + suffix
			}
		}
	}
	return s.CanonicalName(key)
}

var listSeparator = regexp.MustCompile(`[,\s]+`)

// listValue converts slices of any element type into []interface{}.
// Strings are split on commas and whitespace when split is true.
func listValue(v interface{}, split bool) ([]interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return t, true
	case string:
		if !split {
			return []interface{}{t}, true
		}
		var out []interface{}
		for _, part := range listSeparator.Split(strings.TrimSpace(t), -1) {
			if part != "" {
				out = append(out, part)
			}
		}
		return out, true
	case []byte:
		return []interface{}{string(t)}, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return []interface{}{v}, true
}

// isList reports whether v is a slice or array other than []byte
func isList(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// intVar reads an integer setting
func intVar(v interface{}, fallback int) int {
	if i, ok := validation.Int(v, false); ok {
		return int(i)
	}
	return fallback
}

// boolVar reads a boolean setting
func boolVar(v interface{}, fallback bool) bool {
	if b, ok := validation.Bool(v); ok {
		return b
	}
	return fallback
}

// stringList reads a list of names given as a list or a comma separated string
func stringList(v interface{}) []string {
	items, ok := listValue(v, true)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := validation.String(item); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
