package query

import (
	"sort"
	"strconv"
	"strings"
)

// Relation combines the children of a group
type Relation int

const (
	RelationAnd Relation = iota
	RelationOr
)

// String returns the SQL keyword of the relation
func (r Relation) String() string {
	if r == RelationOr {
		return "OR"
	}
	return "AND"
}

// ParseRelation reads "AND" or "OR", defaulting to AND
func ParseRelation(v interface{}) Relation {
	if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), "OR") {
		return RelationOr
	}
	return RelationAnd
}

// Node is a Leaf or a Group of a boolean filter tree
type Node interface {
	isNode()
}

// Leaf is a first-order clause
type Leaf struct {
	Args map[string]interface{} `json:"args"`
}

// Group combines child nodes under one relation. Args holds scalar
// settings such as a default column that children inherit.
type Group struct {
	Relation Relation               `json:"relation"`
	Children []Node                 `json:"children"`
	Args     map[string]interface{} `json:"args,omitempty"`
}

func (*Leaf) isNode()  {}
func (*Group) isNode() {}

// Get returns a leaf argument
func (l *Leaf) Get(key string) (interface{}, bool) {
	v, ok := l.Args[key]
	return v, ok
}

// And groups nodes under AND
func And(children ...Node) *Group {
	return &Group{Relation: RelationAnd, Children: children}
}

// Or groups nodes under OR
func Or(children ...Node) *Group {
	return &Group{Relation: RelationOr, Children: children}
}

// NewLeaf builds a leaf from its arguments
func NewLeaf(args map[string]interface{}) *Leaf {
	return &Leaf{Args: args}
}

// ParseTree converts a loosely typed filter value into a tree.
//
// Accepted shapes are a leaf map, a list of nodes, a map holding "relation"
// plus child nodes (numbered keys, named keys or a "clauses" list) and
// already typed nodes. Anything else parses to nil.
func ParseTree(v interface{}, isFirstOrder func(map[string]interface{}) bool) Node {
	switch t := v.(type) {
	case nil:
		return nil
	case *Leaf:
		if t == nil || len(t.Args) == 0 {
			return nil
		}
		return t
	case *Group:
		if t == nil {
			return nil
		}
		return normalizeGroup(t.Relation, t.Children, t.Args, isFirstOrder)
	case map[string]interface{}:
		if len(t) == 0 {
			return nil
		}
		if isFirstOrder(t) {
			return &Leaf{Args: t}
		}
		return parseGroupMap(t, isFirstOrder)
	case []interface{}:
		return normalizeGroup(RelationAnd, toNodes(t), nil, isFirstOrder)
	case []map[string]interface{}:
		items := make([]interface{}, len(t))
		for i := range t {
			items[i] = t[i]
		}
		return normalizeGroup(RelationAnd, toNodes(items), nil, isFirstOrder)
	case []Node:
		return normalizeGroup(RelationAnd, t, nil, isFirstOrder)
	}
	return nil
}

func toNodes(items []interface{}) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		if n, ok := item.(Node); ok {
			nodes = append(nodes, n)
			continue
		}
		nodes = append(nodes, rawNode{item})
	}
	return nodes
}

// rawNode defers parsing of a child until the group is normalized
type rawNode struct{ v interface{} }

func (rawNode) isNode() {}

func parseGroupMap(m map[string]interface{}, isFirstOrder func(map[string]interface{}) bool) Node {
	rel := RelationAnd
	var children []Node
	var args map[string]interface{}

	for _, key := range sortedChildKeys(m) {
		value := m[key]
		switch {
		case key == "relation":
			rel = ParseRelation(value)
		case key == "clauses":
			if list, ok := value.([]interface{}); ok {
				children = append(children, toNodes(list)...)
			} else {
				children = append(children, rawNode{value})
			}
		case isContainer(value):
			children = append(children, rawNode{value})
		default:
			if args == nil {
				args = make(map[string]interface{})
			}
			args[key] = value
		}
	}

	return normalizeGroup(rel, children, args, isFirstOrder)
}

func normalizeGroup(rel Relation, children []Node, args map[string]interface{}, isFirstOrder func(map[string]interface{}) bool) Node {
	parsed := make([]Node, 0, len(children))
	for _, child := range children {
		var n Node
		if raw, ok := child.(rawNode); ok {
			n = ParseTree(raw.v, isFirstOrder)
		} else {
			n = ParseTree(child, isFirstOrder)
		}
		if n != nil {
			parsed = append(parsed, n)
		}
	}

	if len(parsed) == 0 {
		return nil
	}
	// The relation of a single child is irrelevant
	if len(parsed) == 1 {
		rel = RelationOr
	}
	return &Group{Relation: rel, Children: parsed, Args: args}
}

func isContainer(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}, []map[string]interface{}, Node:
		return true
	}
	return false
}

// sortedChildKeys orders numbered keys numerically before named keys
func sortedChildKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, errI := strconv.Atoi(keys[i])
		nj, errJ := strconv.Atoi(keys[j])
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
