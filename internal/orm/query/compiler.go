package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// ErrStateOrder is returned when a query step runs out of order
var ErrStateOrder = errors.New("query step out of order")

// State is the lifecycle position of a Query
type State int

const (
	StateUninitialized State = iota
	StateVarsParsed
	StateClausesCompiled
	StateRequestAssembled
	StateExecuted
	StateItemsShaped
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case StateVarsParsed:
		return "vars parsed"
	case StateClausesCompiled:
		return "clauses compiled"
	case StateRequestAssembled:
		return "request assembled"
	case StateExecuted:
		return "executed"
	case StateItemsShaped:
		return "items shaped"
	default:
		return "uninitialized"
	}
}

// Option configures a Compiler
type Option func(*Compiler)

// WithDialect sets the SQL dialect (MySQL by default)
func WithDialect(d Dialect) Option {
	return func(c *Compiler) {
		if d != nil {
			c.dialect = d
		}
	}
}

// WithClock sets the clock used to complete partial dates
func WithClock(now validation.Clock) Option {
	return func(c *Compiler) {
		if now != nil {
			c.now = now
		}
	}
}

// Compiler turns query variables into SQL for one schema
type Compiler struct {
	schema   *schema.Schema
	dialect  Dialect
	now      validation.Clock
	sentinel string
	defaults Vars
	parsers  []ClauseParser
}

// NewCompiler creates a compiler bound to s
func NewCompiler(s *schema.Schema, opts ...Option) (*Compiler, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", schema.ErrConfiguration)
	}

	sentinel, err := newSentinel()
	if err != nil {
		return nil, err
	}

	c := &Compiler{
		schema:   s,
		dialect:  MySQL,
		now:      validation.UTCNow,
		sentinel: sentinel,
	}
	for _, opt := range opts {
		opt(c)
	}

	h := &clauseHelper{dialect: c.dialect, sentinel: sentinel, now: c.now}
	c.parsers = []ClauseParser{
		&DirectParser{h},
		&SearchParser{h},
		&DateParser{h},
		&CompareParser{h},
		&MetaParser{h},
	}
	c.defaults = defaultVars(s, sentinel)

	return c, nil
}

// Schema returns the schema the compiler is bound to
func (c *Compiler) Schema() *schema.Schema {
	return c.schema
}

// Dialect returns the SQL dialect
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// KnownVars returns every variable name the compiler understands, sorted
func (c *Compiler) KnownVars() []string {
	out := make([]string, 0, len(c.defaults))
	for k := range c.defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnknownVars returns the keys of vars no parser reads, sorted
func (c *Compiler) UnknownVars(vars Vars) []string {
	var out []string
	for k := range vars {
		if _, ok := c.defaults[canonicalKey(c.schema, k)]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Parse merges vars over the schema defaults and starts a query
func (c *Compiler) Parse(vars Vars) *Query {
	q := &Query{compiler: c, state: StateUninitialized}

	merged := c.defaults.Clone()
	for k, v := range vars {
		merged[canonicalKey(c.schema, k)] = v
	}

	// Counting is never paginated and does not warm caches
	if boolVar(merged[VarCount], false) {
		merged[VarNumber] = 0
		merged[VarNoFoundRows] = true
		merged[VarUpdateItemCache] = false
		merged[VarUpdateMetaCache] = false
	}

	q.vars = merged
	q.state = StateVarsParsed
	return q
}

// Compile runs Parse, CompileClauses and Assemble
func (c *Compiler) Compile(vars Vars) (*Query, error) {
	q := c.Parse(vars)
	if err := q.CompileClauses(); err != nil {
		return nil, err
	}
	if _, err := q.Assemble(); err != nil {
		return nil, err
	}
	return q, nil
}

// Request is an assembled statement ready for execution
type Request struct {
	SQL       string
	Args      []interface{}
	CountSQL  string
	CountArgs []interface{}

	Fields          []string
	Count           bool
	GroupBy         []string
	Number          int
	Offset          int
	Paginate        bool
	UpdateItemCache bool
	UpdateMetaCache bool
}

// MaxPages returns the number of pages found rows span
func (r *Request) MaxPages(found int) int {
	if found <= 0 {
		return 0
	}
	if r.Number <= 0 {
		return 1
	}
	return (found + r.Number - 1) / r.Number
}

// Query is one pass through the compiler
type Query struct {
	compiler *Compiler
	state    State
	vars     Vars
	clauses  Clauses
	request  *Request
}

// State returns the current lifecycle state
func (q *Query) State() State {
	return q.state
}

// Vars returns a copy of the effective query variables
func (q *Query) Vars() Vars {
	return q.vars.Clone()
}

// Get returns an effective variable. Unset defaults report false.
func (q *Query) Get(key string) (interface{}, bool) {
	v, ok := q.vars[key]
	if !ok {
		return nil, false
	}
	if s, isString := v.(string); isString && s == q.compiler.sentinel {
		return nil, false
	}
	return v, true
}

// Clauses returns the compiled clause set
func (q *Query) Clauses() Clauses {
	return q.clauses
}

// Request returns the assembled request, nil before Assemble
func (q *Query) Request() *Request {
	return q.request
}

func (q *Query) advance(from, to State) error {
	if q.state != from {
		return fmt.Errorf("%w: cannot move to %s while %s", ErrStateOrder, to, q.state)
	}
	q.state = to
	return nil
}

// CompileClauses runs every clause parser
func (q *Query) CompileClauses() error {
	if q.state != StateVarsParsed {
		return fmt.Errorf("%w: cannot move to %s while %s", ErrStateOrder, StateClausesCompiled, q.state)
	}

	var c Clauses
	for _, p := range q.compiler.parsers {
		c.Merge(p.Compile(q.vars, q.compiler.schema))
	}
	q.clauses = c

	return q.advance(StateVarsParsed, StateClausesCompiled)
}

// Assemble builds the statement from the compiled clauses
func (q *Query) Assemble() (*Request, error) {
	if q.state != StateClausesCompiled {
		return nil, fmt.Errorf("%w: cannot move to %s while %s", ErrStateOrder, StateRequestAssembled, q.state)
	}

	q.request = q.assemble()
	return q.request, q.advance(StateClausesCompiled, StateRequestAssembled)
}

// MarkExecuted records that the request ran or was served from cache
func (q *Query) MarkExecuted() error {
	return q.advance(StateRequestAssembled, StateExecuted)
}

// MarkShaped records that result rows were turned into items
func (q *Query) MarkShaped() error {
	return q.advance(StateExecuted, StateItemsShaped)
}

// Fingerprint hashes the effective variables. Fields and untouched
// defaults are left out, so the value is stable across compilers.
func (q *Query) Fingerprint() (string, error) {
	if q.state < StateRequestAssembled {
		return "", fmt.Errorf("%w: fingerprint requires an assembled request", ErrStateOrder)
	}
	return fingerprint(q.vars, q.compiler.sentinel)
}

func (q *Query) assemble() *Request {
	s := q.compiler.schema
	d := q.compiler.dialect
	table := s.Table()

	r := &Request{
		Fields:          q.fields(),
		Count:           boolVar(q.vars[VarCount], false),
		GroupBy:         q.groupBy(),
		Number:          intVar(q.vars[VarNumber], DefaultNumber),
		Offset:          intVar(q.vars[VarOffset], 0),
		UpdateItemCache: boolVar(q.vars[VarUpdateItemCache], true),
		UpdateMetaCache: boolVar(q.vars[VarUpdateMetaCache], true),
	}
	if r.Number < 0 {
		r.Number = 0
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	r.Paginate = !r.Count && r.Number > 0 && !boolVar(q.vars[VarNoFoundRows], true)

	primary := q.qualify(s.PrimaryColumnName())
	from := "FROM " + table.Name + " " + table.Alias
	joinSQL, joinArgs := q.clauses.joinSQL()
	if joinSQL != "" {
		from += " " + joinSQL
	}
	whereSQL, whereArgs := q.clauses.whereSQL()
	if whereSQL != "" {
		from += " WHERE " + whereSQL
	}
	baseArgs := append(append([]interface{}{}, joinArgs...), whereArgs...)

	counted := "COUNT(*)"
	if len(q.clauses.Joins) > 0 {
		counted = "COUNT(DISTINCT " + primary + ")"
	}

	groupCols := make([]string, len(r.GroupBy))
	for i, name := range r.GroupBy {
		groupCols[i] = q.qualify(name)
	}
	groupSQL := strings.Join(groupCols, ", ")

	var sql strings.Builder
	args := append([]interface{}{}, baseArgs...)

	if r.Count {
		if len(groupCols) > 0 {
			fmt.Fprintf(&sql, "SELECT %s, %s AS count %s GROUP BY %s", groupSQL, counted, from, groupSQL)
		} else {
			fmt.Fprintf(&sql, "SELECT %s %s", counted, from)
		}
		r.SQL = d.Rebind(sql.String())
		r.Args = args
		return r
	}

	fmt.Fprintf(&sql, "SELECT %s %s", primary, from)
	switch {
	case groupSQL != "":
		sql.WriteString(" GROUP BY " + groupSQL)
	case len(q.clauses.Joins) > 0:
		sql.WriteString(" GROUP BY " + primary)
	}

	if order := q.orderBy(); len(order) > 0 {
		parts := make([]string, len(order))
		for i, o := range order {
			parts[i] = o.SQL
			args = append(args, o.Args...)
		}
		sql.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if r.Number > 0 {
		sql.WriteString(" LIMIT ?")
		args = append(args, r.Number)
		if r.Offset > 0 {
			sql.WriteString(" OFFSET ?")
			args = append(args, r.Offset)
		}
	}

	r.SQL = d.Rebind(sql.String())
	r.Args = args

	if r.Paginate {
		if groupSQL != "" {
			r.CountSQL = d.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %s %s GROUP BY %s) AS found_rows", groupSQL, from, groupSQL))
		} else {
			r.CountSQL = d.Rebind(fmt.Sprintf("SELECT %s %s", counted, from))
		}
		r.CountArgs = append([]interface{}{}, baseArgs...)
	}

	return r
}

func (q *Query) qualify(column string) string {
	return q.compiler.schema.Table().Alias + "." + column
}

// fields returns the requested projection: "ids" or known column names
func (q *Query) fields() []string {
	var out []string
	for _, name := range stringList(q.vars[VarFields]) {
		if strings.EqualFold(name, "ids") {
			return []string{"ids"}
		}
		if col, ok := q.compiler.schema.Column(name); ok {
			out = append(out, col.Name)
		}
	}
	return out
}

func (q *Query) groupBy() []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range stringList(q.vars[VarGroupBy]) {
		col, ok := q.compiler.schema.Column(name)
		if !ok || seen[col.Name] {
			continue
		}
		seen[col.Name] = true
		out = append(out, col.Name)
	}
	return out
}

// orderTerm is one requested ordering before validation
type orderTerm struct {
	name string
	dir  string
}

// orderBy resolves "orderby" and "order" into ORDER BY expressions
func (q *Query) orderBy() []Fragment {
	s := q.compiler.schema
	dir := direction(q.vars[VarOrder], "DESC")

	terms, disabled := orderTerms(q.vars[VarOrderBy], dir)
	if disabled {
		return nil
	}
	if len(terms) == 0 {
		terms = []orderTerm{{name: s.PrimaryColumnName(), dir: dir}}
	}

	var out []Fragment
	for _, t := range terms {
		if f, ok := q.orderFragment(t); ok {
			out = append(out, f)
		}
	}

	// Nothing usable was asked for, fall back to the primary column
	if len(out) == 0 {
		if col, ok := s.PrimaryColumn(); ok {
			out = append(out, Fragment{SQL: q.qualify(col.Name) + " " + dir})
		}
	}
	return out
}

func (q *Query) orderFragment(t orderTerm) (Fragment, bool) {
	s := q.compiler.schema

	if base, ok := strings.CutSuffix(t.name, SuffixIn); ok {
		col, ok := s.Column(base)
		if !ok || !col.In {
			return Fragment{}, false
		}
		v, ok := q.Get(col.Name + SuffixIn)
		if !ok {
			return Fragment{}, false
		}
		items, _ := listValue(v, false)
		if len(items) == 0 {
			return Fragment{}, false
		}
		args := make([]interface{}, len(items))
		for i, item := range items {
			args[i] = col.BindValue(item)
		}
		return Fragment{SQL: q.compiler.dialect.OrderByList(q.qualify(col.Name), len(args)), Args: args}, true
	}

	col, ok := s.Column(t.name)
	if !ok || !col.Sortable {
		return Fragment{}, false
	}
	return Fragment{SQL: q.qualify(col.Name) + " " + t.dir}, true
}

// orderTerms reads the orderby variable. disabled is true for "none",
// false and empty collections.
//
// Only the string and list forms keep the caller's order for breaking ties.
// A map has no order, so its columns are sorted by name; a list of
// single-entry maps such as [{title: ASC}, {created: DESC}] gives both an
// order and per-column directions.
func orderTerms(v interface{}, dir string) (terms []orderTerm, disabled bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case bool:
		return nil, !t
	case string:
		t = strings.TrimSpace(t)
		if strings.EqualFold(t, OrderByNone) {
			return nil, true
		}
		for _, name := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
			terms = append(terms, orderTerm{name: name, dir: dir})
		}
		return terms, false
	case map[string]interface{}:
		if len(t) == 0 {
			return nil, true
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			terms = append(terms, orderTerm{name: k, dir: direction(t[k], dir)})
		}
		return terms, false
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = val
		}
		return orderTerms(m, dir)
	}

	if isList(v) {
		items, _ := listValue(v, false)
		if len(items) == 0 {
			return nil, true
		}
		for _, item := range items {
			switch m := item.(type) {
			case map[string]interface{}, map[string]string:
				sub, _ := orderTerms(m, dir)
				terms = append(terms, sub...)
				continue
			}
			if name, ok := validation.String(item); ok && name != "" {
				terms = append(terms, orderTerm{name: strings.TrimSpace(name), dir: dir})
			}
		}
	}
	return terms, false
}

// direction reads ASC or DESC, falling back to def
func direction(v interface{}, def string) string {
	s, _ := v.(string)
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	return def
}
