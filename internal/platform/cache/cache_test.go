package cache

import (
	"context"
	"testing"
	"time"
)

func TestSearchKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	c := NewSearchCache(NewMemoryStore(), nil, 0)

	base := c.SearchKey("B12345", "order")
	for _, variant := range []string{"b12345", "  B12345  ", "b12345 "} {
		if key := c.SearchKey(variant, "order"); key != base {
			t.Fatalf("variant %q produced different key %q", variant, key)
		}
	}
}

func TestSearchKey_NamespaceIsolation(t *testing.T) {
	c := NewSearchCache(NewMemoryStore(), nil, 0)
	ctx := context.Background()

	orderKey := c.SearchKey("12345", "order")
	customerKey := c.SearchKey("12345", "customer")
	if orderKey == customerKey {
		t.Fatalf("namespaces must not collide: %q", orderKey)
	}

	if !c.Set(ctx, orderKey, "order-value", 0) {
		t.Fatalf("Set failed")
	}
	if _, found := c.Get(ctx, customerKey); found {
		t.Fatalf("order entry must not satisfy a customer lookup")
	}
	if value, found := c.Get(ctx, orderKey); !found || value != "order-value" {
		t.Fatalf("expected order hit, got %q found=%v", value, found)
	}
}

func TestSearchCache_SentinelDistinctFromAbsent(t *testing.T) {
	c := NewSearchCache(NewMemoryStore(), nil, 0)
	ctx := context.Background()
	key := c.SearchKey("badtoken", "order")

	if _, found := c.Get(ctx, key); found {
		t.Fatalf("expected absence before set")
	}
	c.Set(ctx, key, Sentinel, 0)
	value, found := c.Get(ctx, key)
	if !found {
		t.Fatalf("sentinel must read back as present")
	}
	if value != Sentinel {
		t.Fatalf("unexpected sentinel value %q", value)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	c := NewSearchCache(store, nil, 0)
	ctx := context.Background()
	key := c.SearchKey("term", "customer")

	c.Set(ctx, key, "value", time.Minute)
	if _, found := c.Get(ctx, key); !found {
		t.Fatalf("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, found := c.Get(ctx, key); found {
		t.Fatalf("expected miss after expiry")
	}
}

func TestSearchCache_ClearAllRemovesOnlyOwnPrefix(t *testing.T) {
	store := NewMemoryStore()
	c := NewSearchCache(store, nil, 0)
	ctx := context.Background()

	c.Set(ctx, c.SearchKey("a", "order"), "1", 0)
	c.Set(ctx, c.SearchKey("b", "coupon"), "2", 0)
	if err := store.Set(ctx, "othersvc:key", "3", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if removed := c.ClearAll(ctx); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if value, found, _ := store.Get(ctx, "othersvc:key"); !found || value != "3" {
		t.Fatalf("foreign keys must survive ClearAll")
	}
}

func TestSearchCache_NilStoreDegradesToMiss(t *testing.T) {
	var c *SearchCache
	ctx := context.Background()

	if _, found := c.Get(ctx, "key"); found {
		t.Fatalf("nil cache must miss")
	}
	if c.Set(ctx, "key", "value", 0) {
		t.Fatalf("nil cache must not report successful sets")
	}
}
