// Package access decides which fields of a table a caller may read or write.
//
// Denials never fail an operation: the item shaper redacts denied fields and
// the write path drops them.
package access

import (
	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// Policy answers whether op may touch field
type Policy interface {
	Can(op schema.Operation, field string) bool
}

// PolicyFunc adapts a function to Policy
type PolicyFunc func(op schema.Operation, field string) bool

// Can implements Policy
func (f PolicyFunc) Can(op schema.Operation, field string) bool {
	return f(op, field)
}

// AllowAll grants every operation on every field
var AllowAll Policy = PolicyFunc(func(schema.Operation, string) bool { return true })

// DenyAll refuses every operation on every field
var DenyAll Policy = PolicyFunc(func(schema.Operation, string) bool { return false })

// CapabilityPolicy checks the capability a column requires for an
// operation against the capabilities granted to the caller. Columns
// without a requirement are open; unknown fields are denied.
type CapabilityPolicy struct {
	schema  *schema.Schema
	granted map[string]bool
}

// NewCapabilityPolicy grants the named capabilities on s
func NewCapabilityPolicy(s *schema.Schema, capabilities ...string) *CapabilityPolicy {
	granted := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		granted[c] = true
	}
	return &CapabilityPolicy{schema: s, granted: granted}
}

// Grant adds capabilities
func (p *CapabilityPolicy) Grant(capabilities ...string) {
	for _, c := range capabilities {
		p.granted[c] = true
	}
}

// Can implements Policy
func (p *CapabilityPolicy) Can(op schema.Operation, field string) bool {
	col, ok := p.schema.Column(field)
	if !ok {
		return false
	}
	required := col.Capability(op)
	return required == "" || p.granted[required]
}

// Fields returns the names in fields op may touch, in order
func Fields(p Policy, op schema.Operation, fields []string) []string {
	if p == nil {
		return fields
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if p.Can(op, f) {
			out = append(out, f)
		}
	}
	return out
}
