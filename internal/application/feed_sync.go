package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"atompub/internal/domain/entity"
	"atompub/internal/domain/repository"
)

const defaultMaxPublishAttempts = 3

// FeedSync runs the fetch → normalize → diff → publish cycle for a single
// feed. Each feed owns exactly one FeedSync, driven by one scheduler task,
// so no locking is needed around cycle state.
type FeedSync struct {
	name string
	url  string
	dest entity.Destination

	fetcher   repository.FeedFetcher
	cache     repository.SeenCache
	publisher repository.Publisher

	maxAttempts int
	attempts    map[string]int // rejected-publish count per entry id
	provisioned bool

	log *slog.Logger
}

func NewFeedSync(
	name, url string,
	dest entity.Destination,
	fetcher repository.FeedFetcher,
	cache repository.SeenCache,
	publisher repository.Publisher,
	maxAttempts int,
) *FeedSync {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPublishAttempts
	}
	return &FeedSync{
		name:        name,
		url:         url,
		dest:        dest,
		fetcher:     fetcher,
		cache:       cache,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
		log:         slog.With("feed", name),
	}
}

func (s *FeedSync) Name() string { return s.name }

// RunCycle executes one polling cycle. Every error is terminal for this
// cycle only; the scheduler retries on the next tick.
func (s *FeedSync) RunCycle(ctx context.Context) error {
	info, entries, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return fmt.Errorf("failed to fetch feed [%s]: %w", s.name, err)
	}

	if len(entries) == 0 {
		s.log.Debug("feed has no entries")
		return nil
	}

	known, err := s.cache.Count(ctx, s.name)
	if err != nil {
		return fmt.Errorf("failed to inspect seen cache: %w", err)
	}

	// Cold start: seed every current id as seen without publishing, so a
	// fresh cache never floods the node with the feed's whole history.
	if known == 0 {
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := s.cache.Seed(ctx, s.name, ids); err != nil {
			return fmt.Errorf("failed to seed seen cache: %w", err)
		}
		s.log.Info("cold start, seeded cache without publishing", "entries", len(entries))
		return nil
	}

	unseen, err := s.filterUnseen(ctx, entries)
	if err != nil {
		return err
	}
	if len(unseen) == 0 {
		return nil
	}

	sortChronological(unseen)

	if !s.provisioned {
		if err := s.publisher.EnsureNode(ctx, s.dest, info); err != nil {
			return fmt.Errorf("failed to provision node %s: %w", s.dest, err)
		}
		s.provisioned = true
	}

	published := 0
	for _, e := range unseen {
		result := repository.PublishResult{Feed: s.name, EntryID: e.ID, Dest: s.dest}
		result.Err = s.publisher.Publish(ctx, s.dest, e)

		switch {
		case result.Err == nil:
			published++
			delete(s.attempts, e.ID)
			if err := s.cache.Mark(ctx, s.name, e.ID); err != nil {
				s.log.Warn("failed to mark entry as seen", "entry", e.ID, "error", err)
			}
			s.log.Info("published entry", "entry", e.ID, "title", e.Title)

		case errors.Is(result.Err, repository.ErrNotConnected):
			// Session down: abandon the rest of the cycle, nothing is
			// marked, everything is retried once reconnected.
			return fmt.Errorf("publish deferred for [%s]: %w", s.name, result.Err)

		case errors.Is(result.Err, repository.ErrPublishRejected):
			s.attempts[e.ID]++
			if s.attempts[e.ID] >= s.maxAttempts {
				delete(s.attempts, e.ID)
				if err := s.cache.Mark(ctx, s.name, e.ID); err != nil {
					s.log.Warn("failed to mark poison entry as seen", "entry", e.ID, "error", err)
				}
				s.log.Warn("entry rejected repeatedly, marking as seen",
					"entry", e.ID, "attempts", s.maxAttempts, "error", result.Err)
			} else {
				s.log.Warn("entry rejected, will retry next cycle",
					"entry", e.ID, "attempt", s.attempts[e.ID], "error", result.Err)
			}

		default:
			s.log.Warn("publish failed", "entry", e.ID, "error", result.Err)
		}
	}

	if published > 0 {
		s.log.Info("cycle complete", "published", published, "unseen", len(unseen))
	}
	return nil
}

func (s *FeedSync) filterUnseen(ctx context.Context, entries []*entity.Entry) ([]*entity.Entry, error) {
	unseen := make([]*entity.Entry, 0, len(entries))
	for _, e := range entries {
		seen, err := s.cache.Seen(ctx, s.name, e.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check seen cache: %w", err)
		}
		if !seen {
			unseen = append(unseen, e)
		}
	}
	return unseen, nil
}

// sortChronological orders entries oldest-first so subscribers receive a
// coherent narrative order. Only entries with known timestamps take part
// in the ordering; untimed entries keep their native feed positions.
func sortChronological(entries []*entity.Entry) {
	timed := make([]*entity.Entry, 0, len(entries))
	for _, e := range entries {
		if e.HasPublished() {
			timed = append(timed, e)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return timed[j].IsNewerThan(timed[i].Published)
	})

	i := 0
	for j, e := range entries {
		if e.HasPublished() {
			entries[j] = timed[i]
			i++
		}
	}
}
