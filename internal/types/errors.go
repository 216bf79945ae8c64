package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoAds         = errors.New("no ads found on page")
	ErrNotFound      = errors.New("not found")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrSessionClosed = errors.New("browser session closed")
	ErrEmptyResponse = errors.New("empty response body")
)

// FetchError wraps errors that occur while loading a results page or
// calling a remote service.
type FetchError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	case e.Page > 0:
		return fmt.Sprintf("fetch error for page %d (%s): %v", e.Page, e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError describes why an ad card was rejected. Index is the card's
// position in document order, starting at 1.
type ParseError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card %d rejected (%s): %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("card %d rejected: %s", e.Index, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while reading or writing output files.
type StorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
