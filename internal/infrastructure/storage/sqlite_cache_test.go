package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteCache_SeenAndMark(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cache, err := NewSQLiteCacheRepository(dbPath, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

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

	// Marking twice is a no-op for membership.
	if err := cache.Mark(ctx, "news", "entry-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err := cache.Count(ctx, "news")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestSQLiteCache_FeedsAreIsolated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cache, err := NewSQLiteCacheRepository(dbPath, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	if err := cache.Mark(ctx, "news", "entry-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := cache.Seen(ctx, "blog", "entry-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("expected entry id to be scoped per feed")
	}
}

func TestSQLiteCache_EvictsLeastRecentlyMarked(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cache, err := NewSQLiteCacheRepository(dbPath, 3)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := cache.Mark(ctx, "news", fmt.Sprintf("entry-%d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	// Touch entry-1 so entry-2 becomes the eviction candidate.
	if err := cache.Mark(ctx, "news", "entry-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(time.Millisecond)

	if err := cache.Mark(ctx, "news", "entry-4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, _ := cache.Seen(ctx, "news", "entry-2")
	if seen {
		t.Error("expected least-recently-marked entry-2 to be evicted")
	}
	seen, _ = cache.Seen(ctx, "news", "entry-1")
	if !seen {
		t.Error("expected recently touched entry-1 to survive eviction")
	}
	count, _ := cache.Count(ctx, "news")
	if count != 3 {
		t.Errorf("expected capacity 3 after eviction, got %d", count)
	}
}

func TestSQLiteCache_SeedMarksWholeBatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cache, err := NewSQLiteCacheRepository(dbPath, 0)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	ids := []string{"entry-1", "entry-2", "entry-3"}
	if err := cache.Seed(ctx, "news", ids); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range ids {
		seen, err := cache.Seen(ctx, "news", id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !seen {
			t.Errorf("expected %s seen after seed", id)
		}
	}
	count, _ := cache.Count(ctx, "news")
	if count != 3 {
		t.Errorf("expected count 3 after seed, got %d", count)
	}
}

func TestSQLiteCache_SeedRespectsCapacity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cache, err := NewSQLiteCacheRepository(dbPath, 3)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	if err := cache.Seed(ctx, "news", []string{"entry-1", "entry-2", "entry-3", "entry-4", "entry-5"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, _ := cache.Count(ctx, "news")
	if count != 3 {
		t.Errorf("expected capacity 3 after seed, got %d", count)
	}
	// Later slice positions count as more recent, so the head is evicted.
	seen, _ := cache.Seen(ctx, "news", "entry-1")
	if seen {
		t.Error("expected oldest seeded entry-1 evicted")
	}
	seen, _ = cache.Seen(ctx, "news", "entry-5")
	if !seen {
		t.Error("expected newest seeded entry-5 to survive")
	}
}

func TestSQLiteCache_CorruptFileIsAnError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(dbPath, []byte("this is not a sqlite file"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSQLiteCacheRepository(dbPath, 0); err == nil {
		t.Fatal("expected error opening corrupt cache file")
	}
}
