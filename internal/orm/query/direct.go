package query

import (
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// DirectParser compiles literal column filters: "col", "col__in" and
// "col__not_in"
type DirectParser struct {
	*clauseHelper
}

// Compile implements ClauseParser
func (p *DirectParser) Compile(vars Vars, s *schema.Schema) Clauses {
	var c Clauses

	for _, col := range s.Columns() {
		expr := p.qualify(s, col.Name)

		if v, ok := vars[col.Name]; ok && p.isSet(v) {
			switch {
			case v == nil:
				c.AddWhere(Fragment{SQL: expr + " IS NULL"})
			case isList(v):
				c.AddWhere(p.in(expr, col, v, false))
			default:
				c.AddWhere(Fragment{SQL: expr + " = ?", Args: []interface{}{col.BindValue(v)}})
			}
		}

		if col.In {
			if v, ok := vars[col.Name+SuffixIn]; ok && p.isSet(v) {
				c.AddWhere(p.in(expr, col, v, false))
			}
		}

		if col.NotIn {
			if v, ok := vars[col.Name+SuffixNotIn]; ok && p.isSet(v) {
				c.AddWhere(p.in(expr, col, v, true))
			}
		}
	}

	return c
}

// in compiles a value list. One value degrades to (in)equality, none to
// no filter at all.
func (p *DirectParser) in(expr string, col *schema.Column, v interface{}, negate bool) Fragment {
	items, ok := listValue(v, false)
	if !ok || len(items) == 0 {
		return Fragment{}
	}

	args := make([]interface{}, len(items))
	for i, item := range items {
		args[i] = col.BindValue(item)
	}

	if len(args) == 1 {
		if negate {
			return Fragment{SQL: expr + " != ?", Args: args}
		}
		return Fragment{SQL: expr + " = ?", Args: args}
	}

	op := OpIn
	if negate {
		op = OpNotIn
	}
	return Fragment{SQL: expr + " " + op.String() + " (" + listPlaceholders(len(args)) + ")", Args: args}
}
