package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atompub/internal/domain/repository"

	_ "modernc.org/sqlite"
)

const defaultCapacityPerFeed = 500

type sqliteCache struct {
	db       *sql.DB
	capacity int
}

// NewSQLiteCacheRepository opens (or creates) the seen-entry database at
// dbPath. capacity bounds the number of ids kept per feed; the least
// recently marked ids are evicted beyond it.
func NewSQLiteCacheRepository(dbPath string, capacity int) (repository.SeenCache, error) {
	if capacity <= 0 {
		capacity = defaultCapacityPerFeed
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	cache := &sqliteCache{db: db, capacity: capacity}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := cache.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return cache, nil
}

func (c *sqliteCache) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seen_entries (
			feed_name TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			marked_at INTEGER NOT NULL,
			PRIMARY KEY (feed_name, entry_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_entries_marked_at ON seen_entries(feed_name, marked_at)`,
	}

	for _, query := range queries {
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

func (c *sqliteCache) Seen(ctx context.Context, feed, entryID string) (bool, error) {
	var exists int
	err := c.db.QueryRowContext(
		ctx,
		"SELECT 1 FROM seen_entries WHERE feed_name = ? AND entry_id = ?",
		feed,
		entryID,
	).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check seen entry: %w", err)
	}

	return true, nil
}

func (c *sqliteCache) Mark(ctx context.Context, feed, entryID string) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO seen_entries (feed_name, entry_id, marked_at) VALUES (?, ?, ?)
		ON CONFLICT(feed_name, entry_id) DO UPDATE SET marked_at = excluded.marked_at`,
		feed,
		entryID,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark entry as seen: %w", err)
	}

	return c.evict(ctx, feed)
}

// Seed inserts every id inside one transaction, so an interrupted seed
// rolls back to an empty feed instead of leaving a half-marked history.
func (c *sqliteCache) Seed(ctx context.Context, feed string, entryIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}

	// Offsetting marked_at by the slice index keeps the feed's native order
	// as the eviction order among seeded ids.
	now := time.Now().UnixNano()
	for i, entryID := range entryIDs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO seen_entries (feed_name, entry_id, marked_at) VALUES (?, ?, ?)
			ON CONFLICT(feed_name, entry_id) DO UPDATE SET marked_at = excluded.marked_at`,
			feed,
			entryID,
			now+int64(i),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	return c.evict(ctx, feed)
}

// evict drops the least recently marked ids beyond the per-feed capacity.
func (c *sqliteCache) evict(ctx context.Context, feed string) error {
	_, err := c.db.ExecContext(
		ctx,
		`DELETE FROM seen_entries WHERE feed_name = ?1 AND entry_id NOT IN (
			SELECT entry_id FROM seen_entries WHERE feed_name = ?1
			ORDER BY marked_at DESC LIMIT ?2
		)`,
		feed,
		c.capacity,
	)
	if err != nil {
		return fmt.Errorf("failed to evict old entries: %w", err)
	}
	return nil
}

func (c *sqliteCache) Count(ctx context.Context, feed string) (int, error) {
	var count int
	err := c.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM seen_entries WHERE feed_name = ?",
		feed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count seen entries: %w", err)
	}
	return count, nil
}

func (c *sqliteCache) Close() error {
	return c.db.Close()
}
