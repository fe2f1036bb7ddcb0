package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// DateUnit is one component of a date filter
type DateUnit int

const (
	UnitYear DateUnit = iota
	UnitMonth
	UnitWeek
	UnitDayOfYear
	UnitDay
	UnitDayOfWeek
	UnitDayOfWeekISO
	UnitHour
	UnitMinute
	UnitSecond
)

// dateUnits lists the units in compile order with their accepted keys
var dateUnits = []struct {
	unit DateUnit
	keys []string
}{
	{UnitYear, []string{"year"}},
	{UnitMonth, []string{"month", "monthnum"}},
	{UnitWeek, []string{"week", "w"}},
	{UnitDayOfYear, []string{"dayofyear"}},
	{UnitDay, []string{"day"}},
	{UnitDayOfWeek, []string{"dayofweek"}},
	{UnitDayOfWeekISO, []string{"dayofweek_iso"}},
	{UnitHour, []string{"hour"}},
	{UnitMinute, []string{"minute"}},
	{UnitSecond, []string{"second"}},
}

var isDateLeaf = firstOrderKeys(
	"year", "month", "monthnum", "week", "w", "dayofyear", "day", "dayofweek",
	"dayofweek_iso", "hour", "minute", "second", "before", "after",
)

var (
	yearOnly  = regexp.MustCompile(`^(\d{4})$`)
	yearMonth = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	fullDate  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// DateParser compiles "date_query" and every "<column>_query" variable.
// Leaves filter one column by date units or by before/after bounds.
type DateParser struct {
	*clauseHelper
}

// Compile implements ClauseParser
func (p *DateParser) Compile(vars Vars, s *schema.Schema) Clauses {
	var c Clauses

	defaultColumn, ok := p.defaultColumn(s)
	if !ok {
		return c
	}

	for _, col := range s.DateColumns() {
		if v, ok := vars[col.Name+SuffixQuery]; ok && p.isSet(v) {
			c.AddWhere(p.compileTree(v, s, col.Name, true))
		}
	}

	if v, ok := vars[VarDateQuery]; ok && p.isSet(v) {
		c.AddWhere(p.compileTree(v, s, defaultColumn, false))
	}

	return c
}

func (p *DateParser) defaultColumn(s *schema.Schema) (string, bool) {
	if col, ok := s.CreatedColumn(); ok && col.DateQuery {
		return col.Name, true
	}
	if cols := s.DateColumns(); len(cols) > 0 {
		return cols[0].Name, true
	}
	return "", false
}

// dateScope carries the settings a group passes down to its children
type dateScope struct {
	column  string
	compare interface{}
	forced  bool
}

func (p *DateParser) compileTree(v interface{}, s *schema.Schema, column string, forced bool) Fragment {
	node := ParseTree(v, isDateLeaf)
	if node == nil {
		return Fragment{}
	}
	return p.compileNode(node, s, dateScope{column: column, forced: forced})
}

func (p *DateParser) compileNode(n Node, s *schema.Schema, scope dateScope) Fragment {
	switch t := n.(type) {
	case *Leaf:
		return p.compileLeaf(t, s, scope)
	case *Group:
		scope = p.inherit(t.Args, s, scope)
		frags := make([]Fragment, 0, len(t.Children))
		for _, child := range t.Children {
			frags = append(frags, p.compileNode(child, s, scope))
		}
		return combine(t.Relation, frags)
	}
	return Fragment{}
}

// inherit applies group level "column" and "compare" settings
func (p *DateParser) inherit(args map[string]interface{}, s *schema.Schema, scope dateScope) dateScope {
	if args == nil {
		return scope
	}
	if name := stringArg(args, "column"); name != "" && !scope.forced {
		if col, ok := s.Column(name); ok && col.DateQuery {
			scope.column = col.Name
		}
	}
	if v, ok := args["compare"]; ok {
		scope.compare = v
	}
	return scope
}

func (p *DateParser) compileLeaf(l *Leaf, s *schema.Schema, scope dateScope) Fragment {
	scope = p.inherit(l.Args, s, scope)
	expr := p.qualify(s, scope.column)
	op := p.operator(scope.compare, dateOperators, OpEqual)

	if !p.validUnits(l.Args) {
		return matchNothing
	}

	inclusive := boolVar(l.Args["inclusive"], false)
	var frags []Fragment

	if v, ok := l.Args["after"]; ok {
		bound, ok := p.bound(v, !inclusive)
		if !ok {
			return Fragment{}
		}
		if !bound.valid {
			return matchNothing
		}
		cmp := ">"
		if inclusive {
			cmp = ">="
		}
		frags = append(frags, Fragment{SQL: expr + " " + cmp + " ?", Args: []interface{}{bound.value}})
	}

	if v, ok := l.Args["before"]; ok {
		bound, ok := p.bound(v, inclusive)
		if !ok {
			return Fragment{}
		}
		if !bound.valid {
			return matchNothing
		}
		cmp := "<"
		if inclusive {
			cmp = "<="
		}
		frags = append(frags, Fragment{SQL: expr + " " + cmp + " ?", Args: []interface{}{bound.value}})
	}

	for _, u := range dateUnits {
		v, ok := unitValue(l.Args, u.keys)
		if !ok {
			continue
		}
		if f, ok := p.compare(p.dialect.DatePart(u.unit, expr), op, p.unitOperand(v, op), toInt); ok {
			frags = append(frags, f)
		}
	}

	return combine(RelationAnd, frags)
}

// unitOperand adapts a unit value to the shape op expects
func (p *DateParser) unitOperand(v interface{}, op Operator) interface{} {
	if op.IsRange() && !isList(v) {
		return []interface{}{v, v}
	}
	return v
}

func unitValue(args map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil && v != "" {
			return v, true
		}
	}
	return nil, false
}

func toInt(v interface{}) interface{} {
	i, _ := validation.Int(v, false)
	return i
}

// validUnits checks every unit value against its physical range. Day of
// month is checked against the month and year when those are known.
func (p *DateParser) validUnits(args map[string]interface{}) bool {
	year := 0
	if v, ok := unitValue(args, []string{"year"}); ok && !isList(v) {
		if y, ok := validation.Int(v, false); ok {
			year = int(y)
		}
	}

	for _, u := range dateUnits {
		v, ok := unitValue(args, u.keys)
		if !ok {
			continue
		}
		items, _ := listValue(v, true)
		for _, item := range items {
			n, ok := strictInt(item)
			if !ok {
				return false
			}
			lo, hi := unitRange(u.unit, year)
			if n < lo || n > hi {
				return false
			}
		}
	}

	month, hasMonth := singleInt(args, []string{"month", "monthnum"})
	day, hasDay := singleInt(args, []string{"day"})
	if hasMonth && hasDay {
		y := year
		if y == 0 {
			// A leap year accepts February 29
			y = 2012
		}
		if !validDate(y, month, day) {
			return false
		}
	}
	return true
}

func singleInt(args map[string]interface{}, keys []string) (int, bool) {
	v, ok := unitValue(args, keys)
	if !ok || isList(v) {
		return 0, false
	}
	n, ok := strictInt(v)
	return n, ok
}

// strictInt accepts integers and integral numeric strings only
func strictInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case float32:
		if t != float32(int(t)) {
			return 0, false
		}
		return int(t), true
	}

	s, ok := validation.String(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func unitRange(u DateUnit, year int) (int, int) {
	switch u {
	case UnitYear:
		return 1, 9999
	case UnitMonth:
		return 1, 12
	case UnitWeek:
		if year > 0 {
			_, weeks := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
			return 1, weeks
		}
		return 1, 53
	case UnitDayOfYear:
		if year > 0 {
			return 1, time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
		}
		return 1, 366
	case UnitDay:
		return 1, 31
	case UnitDayOfWeek, UnitDayOfWeekISO:
		return 1, 7
	case UnitHour:
		return 0, 23
	default:
		return 0, 59
	}
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	return day <= daysIn(year, time.Month(month))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateBound is a completed before/after value
type dateBound struct {
	value string
	valid bool
}

// bound completes a partial date. Missing parts are floored, or ceiled
// when ceil is set. The second result is false for unparseable input.
func (p *DateParser) bound(v interface{}, ceil bool) (dateBound, bool) {
	parts, ok := p.boundParts(v)
	if !ok {
		return dateBound{}, false
	}
	if parts.exact != "" {
		return dateBound{value: parts.exact, valid: true}, true
	}
	return p.complete(parts.fields, ceil), true
}

type boundParts struct {
	fields map[string]interface{}
	exact  string
}

func (p *DateParser) boundParts(v interface{}) (boundParts, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return boundParts{fields: t}, true
	case time.Time:
		return boundParts{exact: t.Format(validation.DatetimeLayout)}, true
	}

	s, ok := validation.String(v)
	if !ok {
		return boundParts{}, false
	}
	s = strings.TrimSpace(s)

	if m := yearOnly.FindStringSubmatch(s); m != nil {
		return boundParts{fields: map[string]interface{}{"year": m[1]}}, true
	}
	if m := yearMonth.FindStringSubmatch(s); m != nil {
		return boundParts{fields: map[string]interface{}{"year": m[1], "month": m[2]}}, true
	}
	if m := fullDate.FindStringSubmatch(s); m != nil {
		return boundParts{fields: map[string]interface{}{"year": m[1], "month": m[2], "day": m[3]}}, true
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return boundParts{}, false
	}
	return boundParts{exact: t.Format(validation.DatetimeLayout)}, true
}

func (p *DateParser) complete(fields map[string]interface{}, ceil bool) dateBound {
	part := func(key string, floor, ceiling int) (int, bool) {
		v, ok := fields[key]
		if !ok || v == nil || v == "" {
			if ceil {
				return ceiling, true
			}
			return floor, true
		}
		return strictInt(v)
	}

	year, ok := part("year", p.now().Year(), p.now().Year())
	if !ok || year < 1 || year > 9999 {
		return dateBound{}
	}
	month, ok := part("month", 1, 12)
	if !ok || month < 1 || month > 12 {
		return dateBound{}
	}
	day, ok := part("day", 1, daysIn(year, time.Month(month)))
	if !ok || !validDate(year, month, day) {
		return dateBound{}
	}
	hour, ok := part("hour", 0, 23)
	if !ok || hour < 0 || hour > 23 {
		return dateBound{}
	}
	minute, ok := part("minute", 0, 59)
	if !ok || minute < 0 || minute > 59 {
		return dateBound{}
	}
	second, ok := part("second", 0, 59)
	if !ok || second < 0 || second > 59 {
		return dateBound{}
	}

	return dateBound{
		value: fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second),
		valid: true,
	}
}
