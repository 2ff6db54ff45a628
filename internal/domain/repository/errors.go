package repository

import (
	"errors"
	"fmt"
)

// ErrNotConnected means the XMPP session is currently down. The entry is not
// marked seen; the next cycle retries after the session reconnects.
var ErrNotConnected = errors.New("xmpp session not connected")

// ErrPublishRejected means the service refused the publish (permission,
// malformed payload). Retried a bounded number of times, then forced seen.
var ErrPublishRejected = errors.New("publish rejected by service")

// FetchError is a transient failure retrieving a feed document. The cycle
// is skipped for that feed only.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a whole-document parse failure. Same per-cycle treatment as
// FetchError.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
