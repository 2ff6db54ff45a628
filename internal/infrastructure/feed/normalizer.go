package feed

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"atompub/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const defaultSummaryMaxRunes = 500

// normalizer turns gofeed documents into canonical entries: stable ids,
// plain-text summaries, sanitized HTML content.
type normalizer struct {
	sanitizer       *bluemonday.Policy
	summaryMaxRunes int
}

func newNormalizer(summaryMaxRunes int) *normalizer {
	if summaryMaxRunes <= 0 {
		summaryMaxRunes = defaultSummaryMaxRunes
	}
	return &normalizer{
		sanitizer:       bluemonday.UGCPolicy(),
		summaryMaxRunes: summaryMaxRunes,
	}
}

func (n *normalizer) normalize(parsed *gofeed.Feed) (entity.FeedInfo, []*entity.Entry) {
	info := entity.FeedInfo{
		Title:       parsed.Title,
		Description: parsed.Description,
	}

	entries := make([]*entity.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			slog.Warn("skipping malformed feed entry", "feed", parsed.Title)
			continue
		}
		entries = append(entries, n.normalizeItem(item))
	}
	return info, entries
}

func (n *normalizer) normalizeItem(item *gofeed.Item) *entity.Entry {
	title := item.Title
	if title == "" {
		title = "Untitled"
	}

	e := entity.NewEntry(
		entity.DeriveID(item.GUID, item.Link, title),
		title,
		item.Link,
		publishedTime(item),
	)
	e.Links = item.Links
	e.Categories = item.Categories

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		e.Author = item.Authors[0].Name
	}

	// Full body when the feed carries one, description otherwise. The
	// summary is always plain text; the content stays HTML but sanitized.
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	if item.Content != "" {
		e.Content = n.sanitizer.Sanitize(item.Content)
	}
	e.Summary = n.summarize(raw)

	return e
}

func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// summarize strips markup, collapses whitespace and truncates on a rune
// boundary so multi-byte characters are never split.
func (n *normalizer) summarize(html string) string {
	if html == "" {
		return ""
	}
	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	return truncateRunes(text, n.summaryMaxRunes)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
