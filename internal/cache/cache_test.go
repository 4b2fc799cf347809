package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/procureos/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("Eviction", func(t *testing.T) {
		small := NewLRUCache(3)

		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("evict-%d", i)
			_ = small.Set(ctx, key, []byte("v"), time.Minute)
		}

		size, capacity := small.Stats()
		if size != 3 {
			t.Errorf("expected size 3 after eviction, got %d", size)
		}
		if capacity != 3 {
			t.Errorf("expected capacity 3, got %d", capacity)
		}

		// Oldest entries evicted first
		val, _ := small.Get(ctx, "evict-0")
		if val != nil {
			t.Error("expected oldest entry to be evicted")
		}
		val, _ = small.Get(ctx, "evict-4")
		if val == nil {
			t.Error("expected newest entry to survive")
		}
	})
}

func TestLRUCacheMatches(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	summaries := []domain.MatchSummary{
		{CandidateID: "sku-1", SellerID: "seller-1", Score: 0.91, Rank: 1},
		{CandidateID: "sku-2", SellerID: "seller-2", Score: 0.73, Rank: 2},
	}

	t.Run("PutAndGet", func(t *testing.T) {
		if err := cache.PutMatches(ctx, "req-1", summaries, time.Minute); err != nil {
			t.Fatalf("PutMatches failed: %v", err)
		}

		got, err := cache.GetMatches(ctx, "req-1")
		if err != nil {
			t.Fatalf("GetMatches failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 summaries, got %d", len(got))
		}
		if got[0].CandidateID != "sku-1" || got[0].Rank != 1 {
			t.Errorf("unexpected first summary: %+v", got[0])
		}
		if got[1].Score != 0.73 {
			t.Errorf("expected score 0.73, got %v", got[1].Score)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := cache.GetMatches(ctx, "unknown")
		if err != nil {
			t.Fatalf("GetMatches failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil on miss, got %v", got)
		}
	})

	t.Run("Supersede", func(t *testing.T) {
		replacement := []domain.MatchSummary{
			{CandidateID: "sku-9", SellerID: "seller-9", Score: 0.88, Rank: 1},
		}
		if err := cache.PutMatches(ctx, "req-1", replacement, time.Minute); err != nil {
			t.Fatalf("PutMatches failed: %v", err)
		}

		got, err := cache.GetMatches(ctx, "req-1")
		if err != nil {
			t.Fatalf("GetMatches failed: %v", err)
		}
		if len(got) != 1 || got[0].CandidateID != "sku-9" {
			t.Errorf("projection was not superseded: %+v", got)
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected *LRUCache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		if err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}
