// Package ratelimit provides pure rate limiting algorithms.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// WindowState represents the current state of a rate limit window (value type).
type WindowState struct {
	Count     int       // Calls in current window
	WindowEnd time.Time // When current window ends
	BurstUsed int       // Burst tokens used
}

// CheckResult represents the outcome of a rate limit check (value type).
type CheckResult struct {
	Allowed    bool
	Remaining  int           // Calls remaining in window
	ResetAt    time.Time     // When limit resets
	RetryAfter time.Duration // How long to wait when denied
	Reason     string        // If not allowed, why
}

// Config holds rate limit configuration (value type).
type Config struct {
	Limit       int           // Calls per window
	Window      time.Duration // Window duration
	BurstTokens int           // Extra tokens for bursts
}

// Reason for denial.
const ReasonLimitExceeded = "rate_limit_exceeded"

// Check performs a rate limit check against a fixed window.
// This is a PURE function - no side effects, deterministic.
//
// Returns the decision and the updated state; the caller must persist
// the new state for the check to take effect.
func Check(state WindowState, cfg Config, now time.Time) (CheckResult, WindowState) {
	windowStart := now.Truncate(cfg.Window)
	windowEnd := windowStart.Add(cfg.Window)

	// New window - reset counters.
	if now.After(state.WindowEnd) || state.WindowEnd.IsZero() {
		state = WindowState{WindowEnd: windowEnd}
	}

	if state.Count < cfg.Limit {
		state.Count++
		return CheckResult{
			Allowed:   true,
			Remaining: cfg.Limit - state.Count,
			ResetAt:   state.WindowEnd,
		}, state
	}

	// Over limit - try burst tokens.
	if cfg.BurstTokens-state.BurstUsed > 0 {
		state.Count++
		state.BurstUsed++
		return CheckResult{
			Allowed:   true,
			Remaining: 0,
			ResetAt:   state.WindowEnd,
		}, state
	}

	retryAfter := state.WindowEnd.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return CheckResult{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    state.WindowEnd,
		RetryAfter: retryAfter,
		Reason:     ReasonLimitExceeded,
	}, state
}
