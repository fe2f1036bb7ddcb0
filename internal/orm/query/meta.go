package query

import (
	"fmt"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

var isMetaLeaf = firstOrderKeys("key", "value")

// MetaParser compiles "meta_query" against the table's key/value side
// table. Positive comparisons INNER JOIN the side table; negative ones use a
// LEFT JOIN or a correlated NOT EXISTS so that items lacking the key are
// kept.
type MetaParser struct {
	*clauseHelper
}

// Compile implements ClauseParser
func (p *MetaParser) Compile(vars Vars, s *schema.Schema) Clauses {
	meta := s.Table().Meta
	v, ok := vars[VarMetaQuery]
	if meta == nil || !ok || !p.isSet(v) {
		return Clauses{}
	}

	node := ParseTree(v, isMetaLeaf)
	if node == nil {
		return Clauses{}
	}
	if leaf, ok := node.(*Leaf); ok {
		node = Or(leaf)
	}

	mc := &metaCompiler{
		MetaParser: p,
		meta:       meta,
		primary:    p.qualify(s, s.PrimaryColumnName()),
	}
	where := mc.group(node.(*Group))

	// Mixing INNER and LEFT joins would drop the rows a LEFT JOIN keeps
	if mc.clauses.HasLeftJoin() {
		mc.clauses.PromoteJoins()
	}
	mc.clauses.AddWhere(where)
	return mc.clauses
}

// metaCompiler holds the state of one meta query compilation
type metaCompiler struct {
	*MetaParser
	meta    *schema.MetaTable
	primary string
	clauses Clauses
	aliases int
}

// compiledLeaf remembers what a sibling leaf joined
type compiledLeaf struct {
	alias  string
	op     Operator
	keySig string
}

func (mc *metaCompiler) group(g *Group) Fragment {
	frags := make([]Fragment, 0, len(g.Children))
	var siblings []compiledLeaf

	for _, child := range g.Children {
		switch t := child.(type) {
		case *Leaf:
			f, compiled := mc.leaf(t, g.Relation, siblings)
			if compiled.alias != "" {
				siblings = append(siblings, compiled)
			}
			frags = append(frags, f)
		case *Group:
			frags = append(frags, mc.group(t))
		}
	}

	return combine(g.Relation, frags)
}

func (mc *metaCompiler) nextAlias() string {
	mc.aliases++
	return fmt.Sprintf("mt%d", mc.aliases)
}

// reuseOrPeek returns a sibling's alias, or the next unused alias without
// reserving it. fresh is true when the caller has to add the join.
func (mc *metaCompiler) reuseOrPeek(rel Relation, leaf compiledLeaf, siblings []compiledLeaf) (alias string, fresh bool) {
	if alias := mc.compatibleAlias(rel, leaf, siblings); alias != "" {
		return alias, false
	}
	return fmt.Sprintf("mt%d", mc.aliases+1), true
}

func (mc *metaCompiler) join(typ JoinType, alias string, on Fragment) {
	mc.clauses.AddJoin(Join{Type: typ, Table: mc.meta.Name, Alias: alias, On: on})
}

func (mc *metaCompiler) joinOn(alias string) Fragment {
	return Fragment{SQL: mc.primary + " = " + alias + "." + mc.meta.ForeignKey}
}

// compatibleAlias finds an earlier sibling whose join this leaf can reuse
func (mc *metaCompiler) compatibleAlias(rel Relation, leaf compiledLeaf, siblings []compiledLeaf) string {
	for _, sib := range siblings {
		switch rel {
		case RelationOr:
			if sharedUnderOr.has(leaf.op) && sharedUnderOr.has(sib.op) {
				return sib.alias
			}
		case RelationAnd:
			if sib.keySig == leaf.keySig && sharedUnderAnd.has(leaf.op) && sharedUnderAnd.has(sib.op) {
				return sib.alias
			}
		}
	}
	return ""
}

// metaLeaf is a leaf with its defaults resolved
type metaLeaf struct {
	keys     []interface{}
	keyOp    Operator
	value    interface{}
	hasValue bool
	op       Operator
	cast     string
}

func (mc *metaCompiler) resolve(l *Leaf) metaLeaf {
	var ml metaLeaf

	if k, ok := l.Args["key"]; ok && k != nil {
		items, _ := listValue(k, false)
		for _, item := range items {
			if s, ok := validation.String(item); ok && s != "" {
				ml.keys = append(ml.keys, s)
			}
		}
	}

	ml.keyOp = mc.operator(l.Args["compare_key"], keyOperators, OpEqual)
	if len(ml.keys) > 1 {
		switch ml.keyOp {
		case OpEqual:
			ml.keyOp = OpIn
		case OpNotEqual:
			ml.keyOp = OpNotIn
		}
	}

	ml.value, ml.hasValue = l.Args["value"]
	if ml.value == nil {
		ml.hasValue = false
	}

	fallback := OpEqual
	if isList(ml.value) {
		fallback = OpIn
	}
	if _, ok := l.Args["compare"]; ok {
		ml.op = mc.operator(l.Args["compare"], valueOperators, OpEqual)
	} else {
		ml.op = fallback
	}

	ml.cast = NormalizeCast(stringArg(l.Args, "type"))
	return ml
}

func (ml metaLeaf) keySig() string {
	return fmt.Sprintf("%s:%v", ml.keyOp, ml.keys)
}

func (mc *metaCompiler) leaf(l *Leaf, rel Relation, siblings []compiledLeaf) (Fragment, compiledLeaf) {
	ml := mc.resolve(l)
	hasKey := len(ml.keys) > 0
	compiled := compiledLeaf{op: ml.op, keySig: ml.keySig()}

	switch {
	case !hasKey && !ml.hasValue && ml.op != OpExists && ml.op != OpNotExists:
		return Fragment{}, compiledLeaf{}

	case ml.op == OpNotExists:
		return mc.notExists(ml), compiledLeaf{}

	case hasKey && ml.keyOp.IsNegative():
		return mc.negativeKey(ml), compiledLeaf{}

	case ml.op.IsNegative() && ml.hasValue && !hasKey:
		return mc.negativeValueSubselect(ml), compiledLeaf{}

	case ml.op.IsNegative() && ml.hasValue:
		alias, fresh := mc.reuseOrPeek(rel, compiled, siblings)
		cmp, ok := mc.valueCondition(alias, ml, ml.op)
		if !ok {
			return Fragment{}, compiledLeaf{}
		}
		if fresh {
			mc.nextAlias()
			mc.join(LeftJoin, alias, joinAnd(mc.joinOn(alias), mc.keyCondition(alias, ml)))
		}
		compiled.alias = alias
		missing := Fragment{SQL: alias + "." + mc.meta.ForeignKey + " IS NULL"}
		return combine(RelationOr, []Fragment{missing, cmp}), compiled
	}

	alias, fresh := mc.reuseOrPeek(rel, compiled, siblings)

	var frags []Fragment
	if hasKey {
		frags = append(frags, mc.keyCondition(alias, ml))
	}
	if ml.hasValue && ml.op != OpExists {
		cmp, ok := mc.valueCondition(alias, ml, ml.op)
		if !ok {
			return Fragment{}, compiledLeaf{}
		}
		frags = append(frags, cmp)
	}
	if len(frags) == 0 {
		frags = append(frags, Fragment{SQL: alias + "." + mc.meta.ForeignKey + " IS NOT NULL"})
	}

	if fresh {
		mc.nextAlias()
		mc.join(InnerJoin, alias, mc.joinOn(alias))
	}
	compiled.alias = alias
	return combine(RelationAnd, frags), compiled
}

// notExists keeps items without a row for the key
func (mc *metaCompiler) notExists(ml metaLeaf) Fragment {
	alias := mc.nextAlias()
	if len(ml.keys) == 0 {
		return Fragment{SQL: "NOT EXISTS (" + mc.subselect(alias) + ")"}
	}

	mc.join(LeftJoin, alias, joinAnd(mc.joinOn(alias), mc.keyCondition(alias, ml)))
	return Fragment{SQL: alias + "." + mc.meta.ForeignKey + " IS NULL"}
}

// negativeKey excludes items holding a matching key, and value when given
func (mc *metaCompiler) negativeKey(ml metaLeaf) Fragment {
	alias := mc.nextAlias()
	positive := ml
	positive.keyOp = ml.keyOp.Positive()
	if positive.keyOp == OpExists {
		positive.keyOp = OpEqual
	}

	sub := Fragment{SQL: mc.subselect(alias)}
	sub = joinAnd(sub, mc.keyCondition(alias, positive))
	if ml.hasValue && ml.op != OpExists && ml.op != OpNotExists {
		if cmp, ok := mc.valueCondition(alias, ml, ml.op); ok {
			sub = joinAnd(sub, cmp)
		}
	}
	return Fragment{SQL: "NOT EXISTS (" + sub.SQL + ")", Args: sub.Args}
}

// negativeValueSubselect excludes items holding a matching value under any key
func (mc *metaCompiler) negativeValueSubselect(ml metaLeaf) Fragment {
	alias := mc.nextAlias()
	cmp, ok := mc.valueCondition(alias, ml, ml.op.Positive())
	if !ok {
		return Fragment{}
	}
	sub := joinAnd(Fragment{SQL: mc.subselect(alias)}, cmp)
	return Fragment{SQL: "NOT EXISTS (" + sub.SQL + ")", Args: sub.Args}
}

func (mc *metaCompiler) subselect(alias string) string {
	return fmt.Sprintf("SELECT 1 FROM %s AS %s WHERE %s.%s = %s",
		mc.meta.Name, alias, alias, mc.meta.ForeignKey, mc.primary)
}

func (mc *metaCompiler) keyCondition(alias string, ml metaLeaf) Fragment {
	op := ml.keyOp
	if op == OpExists {
		op = OpEqual
	}

	var key interface{} = ml.keys
	if !op.IsList() {
		key = ml.keys[0]
	}
	f, ok := mc.compare(alias+"."+mc.meta.KeyColumn, op, key, nil)
	if !ok {
		return Fragment{}
	}
	return f
}

func (mc *metaCompiler) valueCondition(alias string, ml metaLeaf, op Operator) (Fragment, bool) {
	expr := mc.dialect.Cast(alias+"."+mc.meta.ValueColumn, ml.cast)
	return mc.compare(expr, op, ml.value, nil)
}

// joinAnd appends a condition with AND, without parentheses
func joinAnd(f, extra Fragment) Fragment {
	if extra.Empty() {
		return f
	}
	return Fragment{
		SQL:  f.SQL + " AND " + extra.SQL,
		Args: append(append([]interface{}{}, f.Args...), extra.Args...),
	}
}
