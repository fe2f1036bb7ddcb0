package query

import (
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

var isCompareLeaf = firstOrderKeys("column", "key", "value")

// CompareParser compiles "compare_query" trees whose leaves compare columns
// of the primary table
type CompareParser struct {
	*clauseHelper
}

// Compile implements ClauseParser
func (p *CompareParser) Compile(vars Vars, s *schema.Schema) Clauses {
	var c Clauses

	v, ok := vars[VarCompareQuery]
	if !ok || !p.isSet(v) {
		return c
	}

	node := ParseTree(v, isCompareLeaf)
	if node == nil {
		return c
	}

	c.AddWhere(p.node(node, s))
	return c
}

func (p *CompareParser) node(n Node, s *schema.Schema) Fragment {
	switch t := n.(type) {
	case *Leaf:
		return p.leaf(t, s)
	case *Group:
		frags := make([]Fragment, 0, len(t.Children))
		for _, child := range t.Children {
			frags = append(frags, p.node(child, s))
		}
		return combine(t.Relation, frags)
	}
	return Fragment{}
}

func (p *CompareParser) leaf(l *Leaf, s *schema.Schema) Fragment {
	name := stringArg(l.Args, "column")
	if name == "" {
		name = stringArg(l.Args, "key")
	}
	col, ok := s.Column(name)
	if !ok {
		return Fragment{}
	}

	value, hasValue := l.Args["value"]

	op := OpEqual
	if _, ok := l.Args["compare"]; ok {
		op = p.operator(l.Args["compare"], valueOperators, OpEqual)
	} else if isList(value) {
		op = OpIn
	}

	if !hasValue && op != OpExists && op != OpNotExists {
		return Fragment{}
	}

	expr := p.qualify(s, col.Name)
	if cast := stringArg(l.Args, "type"); cast != "" {
		expr = p.dialect.Cast(expr, cast)
	}

	bind := col.BindValue
	if op.IsLike() || op.IsRegexp() {
		bind = nil
	}
	f, _ := p.compare(expr, op, value, bind)
	return f
}
