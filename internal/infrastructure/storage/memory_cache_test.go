package storage

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCache_SeenAndMark(t *testing.T) {
	cache := NewMemoryCacheRepository(0)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "news", "entry-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("expected unseen entry")
	}

	if err := cache.Mark(ctx, "news", "entry-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err = cache.Seen(ctx, "news", "entry-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Error("expected entry to be seen after mark")
	}

	count, err := cache.Count(ctx, "news")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
	count, err = cache.Count(ctx, "blog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected other feeds untouched, got %d", count)
	}
}

func TestMemoryCache_SeedMarksWholeBatch(t *testing.T) {
	cache := NewMemoryCacheRepository(0)
	ctx := context.Background()

	ids := []string{"entry-1", "entry-2", "entry-3"}
	if err := cache.Seed(ctx, "news", ids); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range ids {
		seen, _ := cache.Seen(ctx, "news", id)
		if !seen {
			t.Errorf("expected %s seen after seed", id)
		}
	}
	count, _ := cache.Count(ctx, "news")
	if count != 3 {
		t.Errorf("expected count 3 after seed, got %d", count)
	}
}

func TestMemoryCache_EvictsOldestBeyondCapacity(t *testing.T) {
	cache := NewMemoryCacheRepository(2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := cache.Mark(ctx, "news", fmt.Sprintf("entry-%d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	count, _ := cache.Count(ctx, "news")
	if count != 2 {
		t.Fatalf("expected capacity to hold, got %d", count)
	}
	seen, _ := cache.Seen(ctx, "news", "entry-1")
	if seen {
		t.Error("expected oldest entry-1 to be evicted")
	}
	seen, _ = cache.Seen(ctx, "news", "entry-3")
	if !seen {
		t.Error("expected newest entry-3 to survive")
	}
}
