package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/orderdesk/adminsearch/internal/platform/observability"
)

const (
	// DefaultTTL bounds staleness for cached search results.
	DefaultTTL = 5 * time.Minute
	// DefaultKeyPrefix namespaces every key this service writes.
	DefaultKeyPrefix = "adminsearch:"
	// Sentinel is the cached-miss marker: a value distinct from absence that
	// records "this lookup previously found nothing".
	Sentinel = "-"

	tracerComponent = "SearchCache"
)

// Store is the raw key/value TTL backend beneath the search cache. A false
// second return from Get distinguishes absence from an empty value.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// SearchCache fronts expensive lookups with namespaced, TTL-bounded entries.
// Backend failures degrade to cache misses: the cache is an accelerator and
// must never fail a search.
type SearchCache struct {
	store      Store
	tracer     *observability.SearchTracer
	keyPrefix  string
	defaultTTL time.Duration
}

// NewSearchCache wraps the supplied store. A nil tracer disables tracing.
func NewSearchCache(store Store, tracer *observability.SearchTracer, defaultTTL time.Duration) *SearchCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &SearchCache{
		store:      store,
		tracer:     tracer,
		keyPrefix:  DefaultKeyPrefix,
		defaultTTL: defaultTTL,
	}
}

// SearchKey derives the cache key for a term under a search-type namespace.
// The term is lowercased and trimmed before hashing so case and surrounding
// whitespace variants share one entry, while the type segment isolates
// namespaces: a customer hit can never satisfy an order lookup.
func (c *SearchCache) SearchKey(term, searchType string) string {
	prefix := DefaultKeyPrefix
	if c != nil {
		prefix = c.keyPrefix
	}
	normalized := strings.ToLower(strings.TrimSpace(term))
	sum := sha256.Sum256([]byte(normalized))
	return prefix + searchType + ":" + hex.EncodeToString(sum[:8])
}

// Get returns the cached value and whether it was present.
func (c *SearchCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.store == nil {
		return "", false
	}
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.trace(ctx, "get_error", map[string]any{"key": key, "error": err.Error()}, zapcore.WarnLevel)
		return "", false
	}
	c.trace(ctx, "get", map[string]any{"key": key, "hit": found}, zapcore.DebugLevel)
	return value, found
}

// Set stores a value under key, reporting success. A zero ttl applies the
// cache default.
func (c *SearchCache) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if c == nil || c.store == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.trace(ctx, "set_error", map[string]any{"key": key, "error": err.Error()}, zapcore.WarnLevel)
		return false
	}
	c.trace(ctx, "set", map[string]any{"key": key, "ttl": ttl.String()}, zapcore.DebugLevel)
	return true
}

// Delete removes one entry, reporting success.
func (c *SearchCache) Delete(ctx context.Context, key string) bool {
	if c == nil || c.store == nil {
		return false
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.trace(ctx, "delete_error", map[string]any{"key": key, "error": err.Error()}, zapcore.WarnLevel)
		return false
	}
	return true
}

// ClearAll removes every entry under this service's key prefix.
func (c *SearchCache) ClearAll(ctx context.Context) int {
	if c == nil || c.store == nil {
		return 0
	}
	removed, err := c.store.DeletePrefix(ctx, c.keyPrefix)
	if err != nil {
		c.trace(ctx, "clear_error", map[string]any{"error": err.Error()}, zapcore.WarnLevel)
		return 0
	}
	c.trace(ctx, "clear_all", map[string]any{"removed": removed}, zapcore.InfoLevel)
	return removed
}

func (c *SearchCache) trace(ctx context.Context, action string, fields map[string]any, level zapcore.Level) {
	c.tracer.Log(ctx, tracerComponent, action, fields, level)
}
