package query

import (
	"fmt"
	"strings"
)

// Fragment is a piece of SQL with its bound arguments
type Fragment struct {
	SQL  string
	Args []interface{}
}

// Empty reports whether the fragment carries no SQL
func (f Fragment) Empty() bool {
	return strings.TrimSpace(f.SQL) == ""
}

// JoinType represents the type of a join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// String returns the SQL keyword of the join type
func (j JoinType) String() string {
	if j == LeftJoin {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// Join joins a side table under an alias
type Join struct {
	Type  JoinType
	Table string
	Alias string
	On    Fragment
}

// String renders the join without its arguments
func (j Join) String() string {
	return fmt.Sprintf("%s %s AS %s ON (%s)", j.Type, j.Table, j.Alias, j.On.SQL)
}

// key identifies a join for deduplication
func (j Join) key() string {
	return fmt.Sprintf("%s|%v", j.String(), j.On.Args)
}

// Clauses is the set of JOIN and WHERE fragments a parser contributes
type Clauses struct {
	Joins []Join
	Where []Fragment
}

// AddJoin appends a join unless an identical one is already present
func (c *Clauses) AddJoin(j Join) {
	k := j.key()
	for _, existing := range c.Joins {
		if existing.key() == k {
			return
		}
	}
	c.Joins = append(c.Joins, j)
}

// AddWhere appends a non-empty predicate
func (c *Clauses) AddWhere(f Fragment) {
	if f.Empty() {
		return
	}
	c.Where = append(c.Where, f)
}

// Merge appends the joins and predicates of other
func (c *Clauses) Merge(other Clauses) {
	for _, j := range other.Joins {
		c.AddJoin(j)
	}
	for _, w := range other.Where {
		c.AddWhere(w)
	}
}

// Empty reports whether no fragments were compiled
func (c Clauses) Empty() bool {
	return len(c.Joins) == 0 && len(c.Where) == 0
}

// HasLeftJoin reports whether any join is a LEFT JOIN
func (c Clauses) HasLeftJoin() bool {
	for _, j := range c.Joins {
		if j.Type == LeftJoin {
			return true
		}
	}
	return false
}

// PromoteJoins turns every join into a LEFT JOIN
func (c *Clauses) PromoteJoins() {
	for i := range c.Joins {
		c.Joins[i].Type = LeftJoin
	}
}

// joinSQL renders all joins and their arguments in order
func (c Clauses) joinSQL() (string, []interface{}) {
	parts := make([]string, 0, len(c.Joins))
	var args []interface{}
	for _, j := range c.Joins {
		parts = append(parts, j.String())
		args = append(args, j.On.Args...)
	}
	return strings.Join(parts, " "), args
}

// whereSQL renders all predicates joined by AND
func (c Clauses) whereSQL() (string, []interface{}) {
	parts := make([]string, 0, len(c.Where))
	var args []interface{}
	for _, w := range c.Where {
		parts = append(parts, w.SQL)
		args = append(args, w.Args...)
	}
	return strings.Join(parts, " AND "), args
}

// combine joins fragments with a boolean relation. More than one fragment
// is wrapped in parentheses.
func combine(rel Relation, frags []Fragment) Fragment {
	var nonEmpty []Fragment
	for _, f := range frags {
		if !f.Empty() {
			nonEmpty = append(nonEmpty, f)
		}
	}

	switch len(nonEmpty) {
	case 0:
		return Fragment{}
	case 1:
		return nonEmpty[0]
	}

	parts := make([]string, len(nonEmpty))
	var args []interface{}
	for i, f := range nonEmpty {
		parts[i] = f.SQL
		args = append(args, f.Args...)
	}
	return Fragment{
		SQL:  "(" + strings.Join(parts, " "+rel.String()+" ") + ")",
		Args: args,
	}
}

// matchNothing is compiled for filters that can never match
var matchNothing = Fragment{SQL: "1 = 0"}
