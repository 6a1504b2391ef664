// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/pkkmi/andikar-gate/domain/ratelimit"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// User represents a user account. The gateway treats user storage purely
// as a key-value accessor; the backend behind it is interchangeable.
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  []byte // bcrypt (optional for OAuth-provisioned users)
	PlanName      string
	PaymentStatus string // "Paid", "Pending", "N/A"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (User, error)

	// Create stores a new user.
	Create(ctx context.Context, u User) error

	// Update modifies an existing user.
	Update(ctx context.Context, u User) error

	// List returns users with pagination.
	List(ctx context.Context, limit, offset int) ([]User, error)
}

// UsageStore persists per-user usage records. Implementations must
// serialize increments for the same user; window rollover is applied on
// both reads and writes so callers never see a stale window.
type UsageStore interface {
	// Get returns the record for a user, rolled over to now. Unknown
	// users get a fresh zeroed record without creating one - reads have
	// no side effects.
	Get(ctx context.Context, userID string, now time.Time) (usage.Record, error)

	// Increment atomically applies one request of the given word count
	// and returns the updated record. Creates the record on first use.
	Increment(ctx context.Context, userID string, words int64, now time.Time) (usage.Record, error)
}

// RateLimitStore persists rate limit window state. Take is atomic per
// user: check and state update happen under one lock (or one round trip
// for remote backends).
type RateLimitStore interface {
	// Take performs an atomic check-and-consume for one call.
	Take(ctx context.Context, userID string, cfg ratelimit.Config, now time.Time) (ratelimit.CheckResult, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// AttemptStatus classifies the outcome of a single upstream attempt.
type AttemptStatus string

const (
	AttemptSuccess   AttemptStatus = "success"
	AttemptRetryable AttemptStatus = "retryable_error"
	AttemptFatal     AttemptStatus = "fatal_error"
)

// Attempt records one upstream request for diagnostics (transient value,
// surfaced in logs and errors, never persisted).
type Attempt struct {
	Format       string
	Status       AttemptStatus
	HTTPStatus   int
	ResponseTime time.Duration
	Detail       string // Error text or response snippet
}

// CallMetrics describes a completed humanize call.
type CallMetrics struct {
	ResponseTime  time.Duration
	InputWords    int
	OutputWords   int
	Retries       int
	FallbackUsed  bool
	SuccessFormat string // Empty when the fallback produced the result
	Truncated     bool
}

// HumanizeResult is the outcome of a successful (remote or degraded)
// humanize call.
type HumanizeResult struct {
	Text    string
	Metrics CallMetrics
}

// Humanizer turns text into humanized text via the external service,
// degrading to a local approximation when the upstream is unavailable.
type Humanizer interface {
	// Humanize processes text under the given tier's limits.
	Humanize(ctx context.Context, text string, t tier.Tier) (HumanizeResult, error)

	// Status probes upstream liveness. A nil error means reachable.
	Status(ctx context.Context) error
}
