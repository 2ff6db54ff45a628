package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"atompub/internal/domain/entity"
	"atompub/internal/domain/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
)

const (
	defaultTimeout = 15 * time.Second
	maxRetries     = 2
	userAgent      = "atompub/2.0"
)

type Config struct {
	Timeout         time.Duration
	SummaryMaxRunes int
}

type feedRepository struct {
	parser     *gofeed.Parser
	timeout    time.Duration
	normalizer *normalizer
}

func NewFeedRepository(cfg Config) repository.FeedFetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: timeout}

	return &feedRepository{
		parser:     parser,
		timeout:    timeout,
		normalizer: newNormalizer(cfg.SummaryMaxRunes),
	}
}

func (r *feedRepository) Fetch(ctx context.Context, url string) (entity.FeedInfo, []*entity.Entry, error) {
	parsed, err := r.fetchWithRetry(ctx, url)
	if err != nil {
		return entity.FeedInfo{}, nil, err
	}
	info, entries := r.normalizer.normalize(parsed)
	return info, entries, nil
}

func (r *feedRepository) fetchWithRetry(ctx context.Context, url string) (*gofeed.Feed, error) {
	var parsed *gofeed.Feed

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		var err error
		parsed, err = r.parser.ParseURLWithContext(url, attemptCtx)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, &repository.ParseError{URL: url, Err: err}
		}
		return nil, &repository.FetchError{URL: url, Err: err}
	}
	return parsed, nil
}

// permanent reports whether retrying the fetch cannot help: undecodable
// documents and client-side HTTP errors.
func permanent(err error) bool {
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return true
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}
