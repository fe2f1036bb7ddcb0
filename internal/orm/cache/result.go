package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/conduit-lang/tablequery/internal/orm/schema"
)

const (
	lastChangedKey = "last_changed"
	queryKeyPrefix = "query:"
	itemKeyPrefix  = "item:"

	// persistent is passed to Provider.Set for values that never expire
	persistent time.Duration = -1
)

// Entry is a cached query result
type Entry struct {
	ItemIDs    []interface{}            `json:"item_ids"`
	FoundCount int                      `json:"found_count"`
	Count      int                      `json:"count,omitempty"`
	Groups     []map[string]interface{} `json:"groups,omitempty"`
}

// ResultCache caches query results and item rows of one table.
//
// Query entries are keyed by fingerprint plus the table's "last changed"
// token; bumping the token after a write makes every earlier entry miss.
type ResultCache struct {
	provider Provider
	table    schema.Table
	ttl      time.Duration
	now      func() time.Time
}

// NewResultCache creates a result cache for table. A zero ttl uses the
// provider's default.
func NewResultCache(provider Provider, table schema.Table, ttl time.Duration) *ResultCache {
	return &ResultCache{
		provider: provider,
		table:    table,
		ttl:      ttl,
		now:      time.Now,
	}
}

// LastChanged returns the table's token, stamping it on first access
func (rc *ResultCache) LastChanged(ctx context.Context) (string, error) {
	b, err := rc.provider.Get(ctx, lastChangedKey, rc.table.CacheGroup())
	if err == nil {
		return string(b), nil
	}
	if !IsCacheMiss(err) {
		return "", err
	}

	token := strconv.FormatInt(rc.now().UnixNano(), 10)
	if err := rc.provider.Set(ctx, lastChangedKey, []byte(token), rc.table.CacheGroup(), persistent); err != nil {
		return "", err
	}
	return token, nil
}

// BumpChanged advances the table's token. The new token is always greater
// than the previous one, even when the clock has not moved.
func (rc *ResultCache) BumpChanged(ctx context.Context) (string, error) {
	next := rc.now().UnixNano()

	b, err := rc.provider.Get(ctx, lastChangedKey, rc.table.CacheGroup())
	switch {
	case err == nil:
		if prev, perr := strconv.ParseInt(string(b), 10, 64); perr == nil && next <= prev {
			next = prev + 1
		}
	case !IsCacheMiss(err):
		return "", err
	}

	token := strconv.FormatInt(next, 10)
	if err := rc.provider.Set(ctx, lastChangedKey, []byte(token), rc.table.CacheGroup(), persistent); err != nil {
		return "", err
	}
	BumpsTotal.WithLabelValues(rc.table.Name).Inc()
	return token, nil
}

// Key returns the cache key of a fingerprint under the current token
func (rc *ResultCache) Key(ctx context.Context, fingerprint string) (string, error) {
	token, err := rc.LastChanged(ctx)
	if err != nil {
		return "", err
	}
	return fingerprint + ":" + token, nil
}

// Get looks up the entry of a fingerprint
func (rc *ResultCache) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	key, err := rc.Key(ctx, fingerprint)
	if err != nil {
		rc.record(KindQuery, ResultError)
		return nil, false, err
	}

	var entry Entry
	ok, err := rc.getJSON(ctx, KindQuery, queryKeyPrefix+key, rc.table.CacheGroup(), &entry)
	if !ok || err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// Put stores the entry of a fingerprint under the current token
func (rc *ResultCache) Put(ctx context.Context, fingerprint string, entry *Entry) error {
	key, err := rc.Key(ctx, fingerprint)
	if err != nil {
		return err
	}
	return rc.setJSON(ctx, queryKeyPrefix+key, rc.table.CacheGroup(), entry)
}

// GetItem returns a cached item row
func (rc *ResultCache) GetItem(ctx context.Context, id interface{}) (map[string]interface{}, bool, error) {
	var row map[string]interface{}
	ok, err := rc.getJSON(ctx, KindItem, itemKey(id), rc.table.CacheGroup(), &row)
	return row, ok, err
}

// PutItem caches an item row
func (rc *ResultCache) PutItem(ctx context.Context, id interface{}, row map[string]interface{}) error {
	return rc.setJSON(ctx, itemKey(id), rc.table.CacheGroup(), row)
}

// DeleteItem evicts an item row
func (rc *ResultCache) DeleteItem(ctx context.Context, id interface{}) error {
	return rc.provider.Delete(ctx, itemKey(id), rc.table.CacheGroup())
}

// GetID returns the cached id of the item whose column holds value
func (rc *ResultCache) GetID(ctx context.Context, column string, value interface{}) (interface{}, bool, error) {
	var id interface{}
	ok, err := rc.getJSON(ctx, KindColumnID, keyOf(value), rc.table.CacheGroupBy(column), &id)
	return id, ok, err
}

// PutID caches the id of the item whose column holds value
func (rc *ResultCache) PutID(ctx context.Context, column string, value, id interface{}) error {
	return rc.setJSON(ctx, keyOf(value), rc.table.CacheGroupBy(column), id)
}

// DeleteID evicts a column lookup
func (rc *ResultCache) DeleteID(ctx context.Context, column string, value interface{}) error {
	return rc.provider.Delete(ctx, keyOf(value), rc.table.CacheGroupBy(column))
}

// GetMeta returns the cached extra metadata of an item
func (rc *ResultCache) GetMeta(ctx context.Context, id interface{}) (map[string][]interface{}, bool, error) {
	var meta map[string][]interface{}
	ok, err := rc.getJSON(ctx, KindMeta, keyOf(id), rc.table.MetaCacheGroup(), &meta)
	return meta, ok, err
}

// PutMeta caches the extra metadata of an item
func (rc *ResultCache) PutMeta(ctx context.Context, id interface{}, meta map[string][]interface{}) error {
	return rc.setJSON(ctx, keyOf(id), rc.table.MetaCacheGroup(), meta)
}

// DeleteMeta evicts the extra metadata of an item
func (rc *ResultCache) DeleteMeta(ctx context.Context, id interface{}) error {
	return rc.provider.Delete(ctx, keyOf(id), rc.table.MetaCacheGroup())
}

func (rc *ResultCache) getJSON(ctx context.Context, kind, key, group string, dst interface{}) (bool, error) {
	b, err := rc.provider.Get(ctx, key, group)
	if err != nil {
		if IsCacheMiss(err) {
			rc.record(kind, ResultMiss)
			return false, nil
		}
		rc.record(kind, ResultError)
		return false, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		// A corrupt value reads as a miss and is overwritten later
		rc.record(kind, ResultMiss)
		return false, nil
	}

	rc.record(kind, ResultHit)
	return true, nil
}

func (rc *ResultCache) setJSON(ctx context.Context, key, group string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %s/%s: %w", group, key, err)
	}
	return rc.provider.Set(ctx, key, b, group, rc.ttl)
}

func (rc *ResultCache) record(kind, result string) {
	RequestsTotal.WithLabelValues(rc.table.Name, kind, result).Inc()
}

func itemKey(id interface{}) string {
	return itemKeyPrefix + keyOf(id)
}

// keyOf renders a scalar as a cache key
func keyOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}
