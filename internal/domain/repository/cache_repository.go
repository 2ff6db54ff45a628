package repository

import "context"

// SeenCache records entry ids already published, per feed. An id present in
// the cache is never republished.
type SeenCache interface {
	// Seen reports whether the entry id was already published for the feed.
	Seen(ctx context.Context, feed, entryID string) (bool, error)
	// Mark records the entry id as published, refreshing its position in the
	// eviction order when it is already present.
	Mark(ctx context.Context, feed, entryID string) error
	// Seed records every id in one step. Either all ids are recorded or none,
	// so a failed seed leaves Count at zero and the cold start retries whole.
	Seed(ctx context.Context, feed string, entryIDs []string) error
	// Count returns the number of ids recorded for the feed. Zero means the
	// feed has never completed a cycle (cold start).
	Count(ctx context.Context, feed string) (int, error)
	Close() error
}
