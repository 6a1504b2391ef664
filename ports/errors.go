package ports

import (
	"errors"
	"fmt"
	"time"
)

// QuotaExceededError is returned when a user's word budget cannot cover
// a request. User-caused and expected: surfaced politely, not logged as
// an error. Quota is never consumed on this path.
type QuotaExceededError struct {
	RemainingWords int64
	ResetsAt       time.Time // Zero when the exhausted budget never resets
}

func (e *QuotaExceededError) Error() string {
	if e.ResetsAt.IsZero() {
		return fmt.Sprintf("word quota exceeded: %d words remaining", e.RemainingWords)
	}
	return fmt.Sprintf("word quota exceeded: %d words remaining, resets at %s",
		e.RemainingWords, e.ResetsAt.Format(time.RFC3339))
}

// RateLimitExceededError is returned on a call-frequency burst.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: retry after %s", e.RetryAfter.Round(time.Second))
}

// UpstreamRejectedError is returned when the upstream rejected every
// candidate format with a client error (4xx other than rate limiting).
type UpstreamRejectedError struct {
	Attempts []Attempt
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request in all %d formats", len(e.Attempts))
}

// UpstreamUnavailableError is returned only when every format and retry
// was exhausted and the local fallback is disabled or failed. It carries
// the full attempt log for diagnostics; callers must not leak it to end
// users verbatim.
type UpstreamUnavailableError struct {
	URL      string
	Attempts []Attempt
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("humanizer service unavailable after %d attempts against %s", len(e.Attempts), e.URL)
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by stores on a duplicate create.
var ErrAlreadyExists = errors.New("already exists")

// ErrEmptyText is returned when a request carries no input text.
var ErrEmptyText = errors.New("text is empty")
