package repository

import (
	"context"

	"atompub/internal/domain/entity"
)

// Publisher pushes entries to pubsub nodes over the shared XMPP session.
// Implementations serialize concurrent callers internally; feed tasks never
// touch connection state.
type Publisher interface {
	// EnsureNode creates and configures the destination node, treating an
	// already existing node as success.
	EnsureNode(ctx context.Context, dest entity.Destination, info entity.FeedInfo) error
	// Publish sends one entry as a pubsub item whose id equals the sanitized
	// entry id, so a duplicate publish overwrites rather than duplicates.
	Publish(ctx context.Context, dest entity.Destination, e *entity.Entry) error
}

// PublishResult reports the outcome of a single publish attempt. It is only
// used for logging, never persisted.
type PublishResult struct {
	Feed    string
	EntryID string
	Dest    entity.Destination
	Err     error
}
