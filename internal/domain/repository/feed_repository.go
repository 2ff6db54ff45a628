package repository

import (
	"context"

	"atompub/internal/domain/entity"
)

// FeedFetcher retrieves a feed document and normalizes it into entries in
// the feed's native order.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (entity.FeedInfo, []*entity.Entry, error)
}
