package table

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablequery/internal/orm/cache"
	"github.com/conduit-lang/tablequery/internal/orm/item"
	"github.com/conduit-lang/tablequery/internal/orm/query"
	"github.com/conduit-lang/tablequery/internal/orm/schema"
	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Result is the outcome of Query. Exactly one of Items, Records, Groups
// or Count carries the answer, depending on the request.
type Result struct {
	// IDs are the matching primary keys in result order
	IDs []interface{}

	// Items are the shaped items of a full query
	Items []*item.Item

	// Records hold a "fields" projection
	Records []map[string]interface{}

	// Groups hold the rows of a grouped count
	Groups []map[string]interface{}

	// Count is the answer of a count query
	Count int

	FoundCount int
	MaxPages   int

	// Cached reports whether the result came from the cache
	Cached bool
}

// Query compiles vars, serves the result from cache or the database and
// shapes it
func (t *Table) Query(ctx context.Context, vars query.Vars) (*Result, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	q, err := t.compiler.Compile(vars)
	if err != nil {
		return nil, t.fail(err)
	}
	req := q.Request()

	entry, cached, err := t.execute(ctx, q, req)
	if err != nil {
		return nil, t.fail(err)
	}
	if err := q.MarkExecuted(); err != nil {
		return nil, t.fail(err)
	}

	res, err := t.shape(ctx, req, entry)
	if err != nil {
		return nil, t.fail(err)
	}
	res.Cached = cached

	if err := q.MarkShaped(); err != nil {
		return nil, t.fail(err)
	}
	return res, nil
}

// Count returns the number of items matching vars
func (t *Table) Count(ctx context.Context, vars query.Vars) (int, error) {
	counted := vars.Clone()
	if counted == nil {
		counted = query.Vars{}
	}
	counted[query.VarCount] = true

	res, err := t.Query(ctx, counted)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// execute reads the entry of a request from the cache, running it on a miss
func (t *Table) execute(ctx context.Context, q *query.Query, req *query.Request) (*cache.Entry, bool, error) {
	fp, err := q.Fingerprint()
	if err != nil {
		return nil, false, err
	}

	if t.cache != nil {
		entry, ok, err := t.cache.Get(ctx, fp)
		switch {
		case err != nil:
			t.cacheWarn("query cache read failed", err)
		case ok:
			t.logger.Debug("query cache hit", zap.String("fingerprint", fp))
			return entry, true, nil
		default:
			t.logger.Debug("query cache miss", zap.String("fingerprint", fp))
		}
	}

	entry, err := t.run(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if t.cache != nil {
		if err := t.cache.Put(ctx, fp, entry); err != nil {
			t.cacheWarn("query cache write failed", err)
		}
	}
	return entry, false, nil
}

// run sends a request to the database
func (t *Table) run(ctx context.Context, req *query.Request) (*cache.Entry, error) {
	entry := &cache.Entry{}

	switch {
	case req.Count && len(req.GroupBy) > 0:
		rows, err := t.gateway.Query(ctx, req.SQL, req.Args...)
		if err != nil {
			return nil, err
		}
		entry.Groups = rows
		for _, row := range rows {
			n, _ := validation.Int(row["count"], false)
			entry.Count += int(n)
		}

	case req.Count:
		v, err := t.gateway.Scalar(ctx, req.SQL, req.Args...)
		if err != nil {
			return nil, err
		}
		n, _ := validation.Int(v, false)
		entry.Count = int(n)

	default:
		ids, err := t.gateway.Column(ctx, req.SQL, req.Args...)
		if err != nil {
			return nil, err
		}
		entry.ItemIDs = ids
		entry.FoundCount = len(ids)

		if req.Paginate {
			v, err := t.gateway.Scalar(ctx, req.CountSQL, req.CountArgs...)
			if err != nil {
				return nil, err
			}
			n, _ := validation.Int(v, false)
			entry.FoundCount = int(n)
		}
	}

	if entry.ItemIDs == nil {
		entry.ItemIDs = []interface{}{}
	}
	return entry, nil
}

// shape turns an entry into items, projections or counts
func (t *Table) shape(ctx context.Context, req *query.Request, entry *cache.Entry) (*Result, error) {
	res := &Result{
		IDs:        t.normalizeIDs(entry.ItemIDs),
		Count:      entry.Count,
		Groups:     entry.Groups,
		FoundCount: entry.FoundCount,
	}
	res.MaxPages = req.MaxPages(res.FoundCount)

	if req.Count {
		return res, nil
	}

	if len(req.Fields) == 1 && req.Fields[0] == item.FieldsIDs {
		res.Records = t.shaper.Project(t.idItems(entry.ItemIDs), req.Fields)
		return res, nil
	}

	items, err := t.items(ctx, entry.ItemIDs, req.UpdateItemCache)
	if err != nil {
		return nil, err
	}
	if req.UpdateMetaCache {
		t.primeMeta(ctx, entry.ItemIDs)
	}

	if len(req.Fields) > 0 {
		res.Records = t.shaper.Project(items, req.Fields)
		return res, nil
	}
	res.Items = items
	return res, nil
}

// normalizeIDs gives ids read from the cache the same types as ids read
// from the database
func (t *Table) normalizeIDs(ids []interface{}) []interface{} {
	col, ok := t.schema.PrimaryColumn()
	if !ok {
		return ids
	}
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = col.BindValue(id)
	}
	return out
}

// idItems wraps bare ids so they can be projected
func (t *Table) idItems(ids []interface{}) []*item.Item {
	primary := t.schema.PrimaryColumnName()
	out := make([]*item.Item, len(ids))
	for i, id := range ids {
		out[i] = t.shaper.ShapeRow(map[string]interface{}{primary: id}, schema.OpSelect)
	}
	return out
}

// items loads rows for ids from the item cache, fetching the rest in one
// statement. Ids without a row are skipped.
func (t *Table) items(ctx context.Context, ids []interface{}, updateCache bool) ([]*item.Item, error) {
	rows := make(map[string]map[string]interface{}, len(ids))

	var missing []interface{}
	for _, id := range ids {
		if t.cache != nil {
			row, ok, err := t.cache.GetItem(ctx, id)
			if err != nil {
				t.cacheWarn("item cache read failed", err)
			}
			if ok {
				rows[item.Key(id)] = row
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := t.shaper.Fetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for key, row := range fetched {
			rows[key] = row
			if t.cache != nil && updateCache {
				if err := t.cache.PutItem(ctx, key, row); err != nil {
					t.cacheWarn("item cache write failed", err)
				}
			}
		}
	}

	items := make([]*item.Item, 0, len(ids))
	for _, id := range ids {
		row, ok := rows[item.Key(id)]
		if !ok {
			t.logger.Debug("item vanished", zap.String("table", t.schema.Table().Name), zap.Any("id", id))
			continue
		}
		items = append(items, t.shaper.ShapeRow(row, schema.OpSelect))
	}
	return items, nil
}

// primeMeta loads the metadata of ids missing from the meta cache
func (t *Table) primeMeta(ctx context.Context, ids []interface{}) {
	if t.cache == nil || t.schema.Table().Meta == nil || len(ids) == 0 {
		return
	}

	var missing []interface{}
	for _, id := range ids {
		_, ok, err := t.cache.GetMeta(ctx, id)
		if err != nil {
			t.cacheWarn("meta cache read failed", err)
			return
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	meta, err := t.ops.GetMetaMany(ctx, missing)
	if err != nil {
		t.cacheWarn("meta priming failed", err)
		return
	}
	for _, id := range missing {
		values := meta[item.Key(id)]
		if values == nil {
			values = map[string][]interface{}{}
		}
		if err := t.cache.PutMeta(ctx, id, values); err != nil {
			t.cacheWarn("meta cache write failed", fmt.Errorf("item %v: %w", id, err))
			return
		}
	}
}
