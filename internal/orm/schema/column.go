package schema

import (
	"reflect"

	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// ValidatorFunc replaces a column's built-in validation. It must not fail;
// it returns the value to store.
type ValidatorFunc func(value interface{}) interface{}

// Column describes one table column: its SQL type, default, validation and
// the query capabilities it takes part in.
type Column struct {
	Name      string
	Type      string
	Length    string
	Unsigned  bool
	AllowNull bool
	Default   interface{}
	Extra     string
	Pattern   ValueKind

	// Decimals overrides the precision decimal columns are rounded to.
	// When nil the precision of the input value is kept.
	Decimals *int

	Primary     bool
	Created     bool
	Modified    bool
	UUID        bool
	Searchable  bool
	Sortable    bool
	DateQuery   bool
	In          bool
	NotIn       bool
	CacheKey    bool
	Transitions bool

	Validator    ValidatorFunc
	Capabilities map[Operation]string
	Aliases      []string
}

// Family returns the validation family of the column's SQL type
func (c *Column) Family() TypeFamily {
	return FamilyOf(c.Type)
}

// Kind returns the placeholder family used to bind values of this column
func (c *Column) Kind() ValueKind {
	if c.Pattern != KindAuto {
		return c.Pattern
	}
	return defaultKind(c.Family())
}

// IsNumeric returns true for integer, decimal and float columns
func (c *Column) IsNumeric() bool {
	switch c.Family() {
	case FamilyInteger, FamilyDecimal, FamilyFloat:
		return true
	}
	return false
}

// Capability returns the capability required to perform op on this column,
// or an empty string when none is required
func (c *Column) Capability(op Operation) string {
	if c.Capabilities == nil {
		return ""
	}
	return c.Capabilities[op]
}

// Validate normalizes a raw value for storage. It never fails: unusable
// input yields the column default.
func (c *Column) Validate(value interface{}) interface{} {
	return c.ValidateAt(value, validation.UTCNow)
}

// ValidateAt is Validate with an explicit clock for "current timestamp"
func (c *Column) ValidateAt(value interface{}, now validation.Clock) interface{} {
	if value == nil && c.AllowNull {
		return nil
	}
	if c.Validator != nil {
		return c.Validator(value)
	}
	if c.UUID {
		return validation.UUID(value)
	}
	if v, ok := c.coerce(value, now); ok {
		return v
	}
	return c.DefaultAt(now)
}

// DefaultAt returns the validated default value of the column
func (c *Column) DefaultAt(now validation.Clock) interface{} {
	if c.Default == nil {
		if c.AllowNull {
			return nil
		}
		return c.zero()
	}
	if v, ok := c.coerce(c.Default, now); ok {
		return v
	}
	return c.zero()
}

// IsDefault reports whether value is empty or equal to the column default
func (c *Column) IsDefault(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && (s == "" || s == validation.ZeroDatetime) {
		return true
	}
	if c.Default == nil {
		return false
	}
	if s, ok := c.Default.(string); ok && s == validation.CurrentTimestamp {
		return false
	}
	def, ok := c.coerce(c.Default, validation.UTCNow)
	if !ok {
		return false
	}
	got, ok := c.coerce(value, validation.UTCNow)
	return ok && reflect.DeepEqual(got, def)
}

// BindValue converts a filter value to the column's placeholder family
func (c *Column) BindValue(value interface{}) interface{} {
	switch c.Kind() {
	case KindInt:
		if i, ok := validation.Int(value, false); ok {
			return i
		}
	case KindFloat:
		if f, ok := validation.Float(value, false); ok {
			return f
		}
	default:
		if s, ok := validation.String(value); ok {
			return s
		}
	}
	return value
}

// coerce runs the family validator without falling back to the default
func (c *Column) coerce(value interface{}, now validation.Clock) (interface{}, bool) {
	switch c.Family() {
	case FamilyInteger:
		return boxed(validation.Int(value, c.Unsigned))
	case FamilyDecimal:
		decimals := -1
		if c.Decimals != nil {
			decimals = *c.Decimals
		}
		return boxed(validation.Numeric(value, decimals, c.Unsigned))
	case FamilyFloat:
		return boxed(validation.Float(value, c.Unsigned))
	case FamilyDatetime:
		return boxed(validation.Datetime(value, now))
	case FamilyDate:
		s, ok := validation.Datetime(value, now)
		if !ok {
			return nil, false
		}
		return s[:10], true
	case FamilyBinary:
		switch v := value.(type) {
		case []byte:
			return v, true
		case string:
			return []byte(v), true
		}
		return nil, false
	default:
		return boxed(validation.String(value))
	}
}

func (c *Column) zero() interface{} {
	switch c.Family() {
	case FamilyInteger:
		return int64(0)
	case FamilyDecimal:
		if c.Decimals != nil {
			s, _ := validation.Numeric(0, *c.Decimals, false)
			return s
		}
		return "0"
	case FamilyFloat:
		return float64(0)
	case FamilyDatetime:
		return validation.ZeroDatetime
	case FamilyDate:
		return validation.ZeroDatetime[:10]
	case FamilyBinary:
		return []byte{}
	default:
		return ""
	}
}

// clone returns a deep enough copy for the registry to own
func (c Column) clone() *Column {
	if c.Capabilities != nil {
		caps := make(map[Operation]string, len(c.Capabilities))
		for k, v := range c.Capabilities {
			caps[k] = v
		}
		c.Capabilities = caps
	}
	if c.Aliases != nil {
		c.Aliases = append([]string(nil), c.Aliases...)
	}
	if c.Decimals != nil {
		d := *c.Decimals
		c.Decimals = &d
	}
	return &c
}

func boxed[T any](v T, ok bool) (interface{}, bool) {
	if !ok {
		return nil, false
	}
	return v, true
}
