package fetcher

import (
	"context"
)

// Session is a live, stateful page the scraper drives. It is not safe for
// concurrent use.
type Session interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// HTML returns the current rendered markup.
	HTML() (string, error)

	// Scroll moves the viewport vertically by dy pixels.
	Scroll(dy int) error

	// Close releases the browser. Calling it more than once is a no-op.
	Close() error
}

// Operator is a human who can clear an anti-bot challenge in the visible
// browser window.
type Operator interface {
	// AwaitIntervention blocks until the operator reports the challenge
	// on pageURL is solved.
	AwaitIntervention(ctx context.Context, pageURL string, kind ChallengeKind) error
}
