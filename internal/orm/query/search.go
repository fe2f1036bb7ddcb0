package query

import (
	"strings"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// SearchWildcard matches any run of characters in a search term
const SearchWildcard = "*"

// SearchParser compiles "search" into LIKE comparisons across searchable
// columns, optionally narrowed by "search_columns"
type SearchParser struct {
	*clauseHelper
}

// Compile implements ClauseParser
func (p *SearchParser) Compile(vars Vars, s *schema.Schema) Clauses {
	var c Clauses

	term, _ := validation.String(vars[VarSearch])
	term = strings.TrimSpace(term)
	if term == "" || !p.isSet(term) {
		return c
	}

	columns := p.columns(vars, s)
	if len(columns) == 0 {
		return c
	}

	pattern := p.pattern(term)
	frags := make([]Fragment, len(columns))
	for i, name := range columns {
		frags[i] = Fragment{
			SQL:  p.dialect.Like(p.qualify(s, name), false),
			Args: []interface{}{pattern},
		}
	}

	where := combine(RelationOr, frags)
	if len(frags) == 1 {
		where.SQL = "(" + where.SQL + ")"
	}
	c.AddWhere(where)
	return c
}

// columns intersects the requested columns with the searchable ones. When
// none of the requested columns is searchable every searchable column is
// used, so a bad column list narrows nothing instead of dropping the search.
func (p *SearchParser) columns(vars Vars, s *schema.Schema) []string {
	searchable := s.ColumnNames(schema.IsSearchable)

	requested := stringList(vars[VarSearchColumns])
	if len(requested) == 0 {
		return searchable
	}

	allowed := make(map[string]bool, len(searchable))
	for _, name := range searchable {
		allowed[name] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, name := range requested {
		name = s.CanonicalName(name)
		if allowed[name] && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	if len(out) == 0 {
		return searchable
	}
	return out
}

// pattern escapes each literal part and turns wildcards into %
func (p *SearchParser) pattern(term string) string {
	parts := strings.Split(term, SearchWildcard)
	for i, part := range parts {
		parts[i] = p.dialect.EscapeLike(part)
	}
	pattern := strings.Join(parts, "%")
	if !strings.HasPrefix(pattern, "%") {
		pattern = "%" + pattern
	}
	if !strings.HasSuffix(pattern, "%") || strings.HasSuffix(pattern, `\%`) {
		pattern += "%"
	}
	return pattern
}
