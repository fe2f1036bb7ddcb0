// Package cache stores query results and item rows for a table.
//
// A Provider is a plain key/value backend with groups; ResultCache layers
// the table's "last changed" token, result entries and item groups on top.
package cache

import (
	"context"
	"errors"
	"time"
)

// Provider defines the interface for all cache backends. Keys are scoped
// to a group so that unrelated lookups never collide.
type Provider interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key, group string) ([]byte, error)

	// Set stores a value in the cache with a TTL. Zero uses the default
	// TTL, a negative TTL never expires.
	Set(ctx context.Context, key string, value []byte, group string, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key, group string) error

	// Clear removes all values of a group
	Clear(ctx context.Context, group string) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "tablequery:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key   string
	Group string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Group + "/" + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

func groupPrefix(prefix, group string) string {
	return prefix + group + ":"
}

func fullKey(prefix, group, key string) string {
	return groupPrefix(prefix, group) + key
}
