package access

import (
	"fmt"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

// DefaultModel is an RBAC model over "<table>.<field>" objects. Policies
// may use keyMatch patterns such as "posts.*" and the action "*".
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// CasbinPolicy evaluates field access for one subject against a casbin
// enforcer. Objects are "<table>.<field>", actions are operation names.
type CasbinPolicy struct {
	enforcer *casbin.Enforcer
	subject  string
	table    string
	logger   *zap.Logger
}

// NewEnforcer creates an in-memory enforcer from model text, DefaultModel
// when empty
func NewEnforcer(modelText string) (*casbin.Enforcer, error) {
	if modelText == "" {
		modelText = DefaultModel
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	return e, nil
}

// NewCasbinPolicy binds subject to the enforcer for table
func NewCasbinPolicy(e *casbin.Enforcer, subject, table string, logger *zap.Logger) *CasbinPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CasbinPolicy{enforcer: e, subject: subject, table: table, logger: logger}
}

// Object returns the casbin object for field
func (p *CasbinPolicy) Object(field string) string {
	return p.table + "." + field
}

// Can implements Policy. Enforcer errors deny.
func (p *CasbinPolicy) Can(op schema.Operation, field string) bool {
	ok, err := p.enforcer.Enforce(p.subject, p.Object(field), op.String())
	if err != nil {
		p.logger.Warn("access check failed",
			zap.String("subject", p.subject),
			zap.String("object", p.Object(field)),
			zap.String("action", op.String()),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// LoadRules adds policy lines to e. A rule is "p, sub, obj, act" or
// "g, user, role".
func LoadRules(e *casbin.Enforcer, rules [][]string) error {
	for i, rule := range rules {
		if len(rule) == 0 {
			continue
		}
		params := make([]interface{}, len(rule)-1)
		for j, v := range rule[1:] {
			params[j] = v
		}

		var err error
		switch rule[0] {
		case "p":
			if len(params) != 3 {
				return fmt.Errorf("rule %d: policy needs subject, object and action", i)
			}
			_, err = e.AddPolicy(params...)
		case "g":
			if len(params) != 2 {
				return fmt.Errorf("rule %d: grouping needs user and role", i)
			}
			_, err = e.AddGroupingPolicy(params...)
		default:
			return fmt.Errorf("rule %d: unknown type %q", i, rule[0])
		}
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}
