package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"
)

// Entry is one normalized article from a feed document. Only the ID
// survives across cycles (in the seen-entry cache); everything else is
// rebuilt on every fetch.
type Entry struct {
	ID         string
	Title      string
	Link       string
	Links      []string
	Summary    string // plain text, whitespace collapsed, rune-truncated
	Content    string // sanitized HTML body, may be empty
	Categories []string
	Author     string
	Published  time.Time // zero when the feed carries no usable timestamp
}

func NewEntry(id, title, link string, published time.Time) *Entry {
	return &Entry{
		ID:        id,
		Title:     title,
		Link:      link,
		Published: published,
	}
}

// HasPublished reports whether the entry carries a known publication time.
// Entries without one are still published but never used for ordering.
func (e *Entry) HasPublished() bool {
	return !e.Published.IsZero()
}

func (e *Entry) IsNewerThan(t time.Time) bool {
	return e.Published.After(t)
}

// DeriveID returns the stable identifier for an entry: the feed-provided
// GUID when present, otherwise a hash of link and title so that re-fetches
// of the same logical entry always produce the same id.
func DeriveID(guid, link, title string) string {
	if guid != "" {
		return guid
	}
	h := sha256.Sum256([]byte(link + "\n" + title))
	return hex.EncodeToString(h[:])
}

var itemIDSanitizer = regexp.MustCompile(`[:,\/]`)

// SanitizeItemID rewrites characters that pubsub services commonly reject
// in item ids. An entry id and its sanitized form are equivalent for
// overwrite-on-republish purposes.
func SanitizeItemID(id string) string {
	return itemIDSanitizer.ReplaceAllString(id, "-")
}
