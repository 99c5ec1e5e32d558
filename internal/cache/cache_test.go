package cache

import (
	"fmt"
	"testing"
	"time"

	"docqa/internal/domain"
)

func TestGetSet_RoundTrip(t *testing.T) {
	c := NewResultCache(10, time.Minute)
	key := Key("How many vacation days?", "s1")

	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	want := domain.QueryResult{Answer: "15 days", Confidence: 0.9, ProcessingTime: 0.123}
	c.Set(key, want)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Answer != want.Answer || got.ProcessingTime != want.ProcessingTime {
		t.Fatalf("cached result mutated: %+v", got)
	}
}

func TestKey_SessionScoped(t *testing.T) {
	if Key("q", "s1") == Key("q", "s2") {
		t.Fatal("keys collide across sessions")
	}
	if Key("q1", "s") == Key("q2", "s") {
		t.Fatal("keys collide across queries")
	}
	if Key("q", "s") != Key("q", "s") {
		t.Fatal("key not deterministic")
	}
}

func TestCapacity_EvictsLRU(t *testing.T) {
	c := NewResultCache(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), domain.QueryResult{Answer: fmt.Sprintf("a%d", i)})
	}
	// Touch k0 so k1 becomes the eviction candidate.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("expected k0 present")
	}
	c.Set("k3", domain.QueryResult{Answer: "a3"})

	if c.Len() != 3 {
		t.Fatalf("expected capacity 3, got %d", c.Len())
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 evicted")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("recently used k0 should survive")
	}
}

func TestTTL_Expires(t *testing.T) {
	c := NewResultCache(10, 10*time.Millisecond)
	c.Set("k", domain.QueryResult{Answer: "a"})
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry expired")
	}
}
