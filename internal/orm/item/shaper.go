package item

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conduit-lang/tablequery/internal/orm/access"
	"github.com/conduit-lang/tablequery/internal/orm/gateway"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// FieldsIDs is the projection holding only primary keys
const FieldsIDs = "ids"

// DefaultBatchSize caps the ids bound into a single IN list. SQLite builds
// before 3.32 refuse statements with more than 999 parameters.
const DefaultBatchSize = 500

// Shaper validates rows against a schema and redacts what the policy
// denies. Denied fields are nulled in items and omitted from projections.
type Shaper struct {
	schema  *schema.Schema
	policy  access.Policy
	gateway gateway.Gateway
	now     validation.Clock
	batch   int
}

// Option configures a Shaper
type Option func(*Shaper)

// WithClock sets the clock used by datetime validation
func WithClock(now validation.Clock) Option {
	return func(s *Shaper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBatchSize sets how many ids Fetch binds per statement
func WithBatchSize(n int) Option {
	return func(s *Shaper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// NewShaper creates a shaper. A nil policy allows everything; a nil
// gateway limits the shaper to rows it is handed.
func NewShaper(s *schema.Schema, policy access.Policy, gw gateway.Gateway, opts ...Option) *Shaper {
	if policy == nil {
		policy = access.AllowAll
	}
	sh := &Shaper{
		schema:  s,
		policy:  policy,
		gateway: gw,
		now:     validation.UTCNow,
		batch:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(sh)
	}
	return sh
}

// Policy returns the access policy
func (s *Shaper) Policy() access.Policy {
	return s.policy
}

// ShapeRow builds an item from a raw row. Columns absent from the row are
// left out; values not belonging to a column are dropped.
func (s *Shaper) ShapeRow(row map[string]interface{}, op schema.Operation) *Item {
	it := New(s.schema.PrimaryColumnName())
	for _, col := range s.schema.Columns() {
		raw, ok := row[col.Name]
		if !ok {
			continue
		}
		if !s.policy.Can(op, col.Name) {
			it.Set(col.Name, nil)
			continue
		}
		it.Set(col.Name, col.ValidateAt(raw, s.now))
	}
	return it
}

// ShapeRows shapes rows in order
func (s *Shaper) ShapeRows(rows []map[string]interface{}, op schema.Operation) []*Item {
	items := make([]*Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.ShapeRow(row, op))
	}
	return items
}

// ShapeID fetches a row fresh from the database and shapes it
func (s *Shaper) ShapeID(ctx context.Context, id interface{}, op schema.Operation) (*Item, bool, error) {
	rows, err := s.Fetch(ctx, []interface{}{id})
	if err != nil {
		return nil, false, err
	}
	row, ok := rows[Key(id)]
	if !ok {
		return nil, false, nil
	}
	return s.ShapeRow(row, op), true, nil
}

// Fetch reads full rows by primary key, bypassing every cache. Large id
// lists are read in batches. The result is keyed by Key(id).
func (s *Shaper) Fetch(ctx context.Context, ids []interface{}) (map[string]map[string]interface{}, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", gateway.ErrGateway)
	}
	out := make(map[string]map[string]interface{}, len(ids))

	primary := s.schema.PrimaryColumnName()
	bind := func(v interface{}) interface{} { return v }
	if col, ok := s.schema.PrimaryColumn(); ok {
		bind = col.BindValue
	}

	for _, batch := range Batches(ids, s.batch) {
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = bind(id)
		}

		var sql string
		if len(batch) == 1 {
			sql = fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", s.schema.Table().Name, primary)
		} else {
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
			sql = fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)", s.schema.Table().Name, primary, marks)
		}

		rows, err := s.gateway.Query(ctx, s.dialect().Rebind(sql), args...)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[Key(row[primary])] = row
		}
	}
	return out, nil
}

// Batches splits ids into consecutive runs of at most n. A non-positive n
// uses DefaultBatchSize.
func Batches(ids []interface{}, n int) [][]interface{} {
	if n <= 0 {
		n = DefaultBatchSize
	}
	var out [][]interface{}
	for len(ids) > n {
		out = append(out, ids[:n:n])
		ids = ids[n:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// Project reduces items to records holding only fields. FieldsIDs keeps
// the primary key; unknown and denied fields are omitted.
func (s *Shaper) Project(items []*Item, fields []string) []map[string]interface{} {
	primary := s.schema.PrimaryColumnName()

	var names []string
	for _, f := range fields {
		if strings.EqualFold(f, FieldsIDs) {
			names = []string{primary}
			break
		}
		if col, ok := s.schema.Column(f); ok {
			names = append(names, col.Name)
		}
	}
	names = access.Fields(s.policy, schema.OpSelect, names)

	out := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		rec := make(map[string]interface{}, len(names))
		for _, name := range names {
			if v, ok := it.Get(name); ok {
				rec[name] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

func (s *Shaper) dialect() query.Dialect {
	if d := s.gateway.Dialect(); d != nil {
		return d
	}
	return query.MySQL
}

// Key renders an id so values read from the database, the cache and the
// caller compare equal
func Key(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
