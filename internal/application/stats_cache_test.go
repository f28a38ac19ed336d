package application

import (
	"testing"
	"time"
)

func TestStatsCacheExpiresEntries(t *testing.T) {
	current := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newStatsCache(time.Second, 4, func() time.Time { return current })

	cache.Store(EventStats{EventID: "e1", TicketsSold: 3})
	if got, ok := cache.Get("e1"); !ok || got.TicketsSold != 3 {
		t.Fatalf("expected cache hit before expiry, got %#v %v", got, ok)
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("e1"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestStatsCacheInvalidateDropsOneEvent(t *testing.T) {
	cache := newStatsCache(time.Minute, 4, time.Now)
	cache.Store(EventStats{EventID: "e1"})
	cache.Store(EventStats{EventID: "e2"})

	cache.Invalidate("e1")
	if _, ok := cache.Get("e1"); ok {
		t.Fatalf("expected e1 to be dropped")
	}
	if _, ok := cache.Get("e2"); !ok {
		t.Fatalf("expected e2 to survive")
	}
}

func TestStatsCacheEvictsClosestToExpiry(t *testing.T) {
	current := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newStatsCache(time.Minute, 2, func() time.Time { return current })

	cache.Store(EventStats{EventID: "old"})
	current = current.Add(time.Second)
	cache.Store(EventStats{EventID: "newer"})
	current = current.Add(time.Second)
	cache.Store(EventStats{EventID: "newest"})

	if _, ok := cache.Get("old"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	for _, id := range []string{"newer", "newest"} {
		if _, ok := cache.Get(id); !ok {
			t.Fatalf("expected %s to remain cached", id)
		}
	}
}

func TestStatsCacheIgnoresNilAndBlankKeys(t *testing.T) {
	var cache *statsCache
	cache.Store(EventStats{EventID: "e1"})
	cache.Invalidate("e1")
	if _, ok := cache.Get("e1"); ok {
		t.Fatalf("expected nil cache to miss")
	}

	live := newStatsCache(0, 0, nil)
	live.Store(EventStats{})
	if len(live.entries) != 0 {
		t.Fatalf("expected blank event id to be ignored")
	}
}
