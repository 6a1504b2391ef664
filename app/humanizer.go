// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/adapters/metrics"
	"github.com/pkkmi/andikar-gate/domain/humanize"
	"github.com/pkkmi/andikar-gate/domain/quota"
	"github.com/pkkmi/andikar-gate/domain/ratelimit"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/domain/usage"
	"github.com/pkkmi/andikar-gate/ports"
)

// HumanizerService coordinates quota, rate limiting, the upstream call,
// and usage accounting for one humanize request.
type HumanizerService struct {
	users     ports.UserStore
	usage     ports.UsageStore
	rateLimit ports.RateLimitStore
	humanizer ports.Humanizer
	clock     ports.Clock
	idGen     ports.IDGenerator
	logger    zerolog.Logger
	metrics   *metrics.Collector // nil when metrics are disabled

	// Hot-reloadable configuration.
	dynamicCfg atomic.Pointer[DynamicConfig]

	// Per-user locks spanning quota check through usage increment, so
	// two concurrent requests from one near-quota user cannot both pass
	// the check and jointly overshoot the limit. Sharded to bound
	// memory; no code path ever holds two shard locks at once.
	userLocks [64]sync.Mutex
}

// DynamicConfig contains hot-reloadable configuration.
type DynamicConfig struct {
	Catalog      *tier.Catalog
	RateWindow   time.Duration
	RateBurst    int
	RateLimitOff bool
}

// Deps contains dependencies for HumanizerService.
type Deps struct {
	Users     ports.UserStore
	Usage     ports.UsageStore
	RateLimit ports.RateLimitStore
	Humanizer ports.Humanizer
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    zerolog.Logger
	Metrics   *metrics.Collector
}

// NewHumanizerService creates the orchestration service.
func NewHumanizerService(deps Deps, cfg DynamicConfig) *HumanizerService {
	s := &HumanizerService{
		users:     deps.Users,
		usage:     deps.Usage,
		rateLimit: deps.RateLimit,
		humanizer: deps.Humanizer,
		clock:     deps.Clock,
		idGen:     deps.IDGen,
		logger:    deps.Logger.With().Str("component", "humanizer_service").Logger(),
		metrics:   deps.Metrics,
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig swaps the hot-reloadable configuration. Thread-safe and
// callable while handling requests.
func (s *HumanizerService) UpdateConfig(cfg DynamicConfig) {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	s.dynamicCfg.Store(&cfg)
}

func (s *HumanizerService) config() *DynamicConfig {
	return s.dynamicCfg.Load()
}

// Result is the outcome of a humanize request.
type Result struct {
	RequestID      string
	HumanizedText  string
	Message        string
	RemainingWords int64
	Metrics        ports.CallMetrics
}

// Humanize runs the full pipeline for one request: resolve tier, check
// quota and rate limit, call the upstream, record usage. Denials happen
// before any network call and never consume quota; usage is recorded
// only after a successful (remote or degraded) result.
func (s *HumanizerService) Humanize(ctx context.Context, userID, tierName, text string) (Result, error) {
	words := int64(humanize.CountWords(text))
	if words == 0 {
		return Result{}, ports.ErrEmptyText
	}

	now := s.clock.Now()
	cfg := s.config()
	userTier := s.resolveTier(ctx, userID, tierName, cfg.Catalog)

	// Overlong input is truncated to the plan's per-request cap before
	// it is sent upstream, so the quota check sees the capped amount.
	// Only the cumulative budgets can deny an overlong request.
	requested := words
	if userTier.WordLimit > 0 && requested > int64(userTier.WordLimit) {
		requested = int64(userTier.WordLimit)
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	// Quota gate. The rolled-over record comes back from the store; an
	// unknown user gets a fresh record with full quota.
	rec, err := s.usage.Get(ctx, userID, now)
	if err != nil {
		return Result{}, fmt.Errorf("load usage: %w", err)
	}
	decision := quota.Check(rec, userTier, requested, now)
	if !decision.Allowed {
		s.countDenial(userTier.Name, string(decision.Axis))
		s.logger.Info().
			Str("user_id", userID).
			Str("tier", userTier.Name).
			Int64("requested", requested).
			Int64("remaining", decision.RemainingWords).
			Msg("quota exceeded")
		return Result{}, &ports.QuotaExceededError{
			RemainingWords: decision.RemainingWords,
			ResetsAt:       decision.ResetsAt,
		}
	}

	// Call-frequency cap, independent of the word quota. A tier with no
	// cap configured is uncapped.
	if !cfg.RateLimitOff && userTier.MaxCallsPerWindow > 0 {
		rlResult, err := s.rateLimit.Take(ctx, userID, ratelimit.Config{
			Limit:       userTier.MaxCallsPerWindow,
			Window:      cfg.RateWindow,
			BurstTokens: cfg.RateBurst,
		}, now)
		if err != nil {
			return Result{}, fmt.Errorf("rate limit check: %w", err)
		}
		if !rlResult.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimitDenials.WithLabelValues(userTier.Name).Inc()
			}
			return Result{}, &ports.RateLimitExceededError{RetryAfter: rlResult.RetryAfter}
		}
	}

	// Upstream call. The client degrades to a local transform on its
	// own; an error here means even that was impossible.
	res, err := s.humanizer.Humanize(ctx, text, userTier)
	if err != nil {
		s.logUpstreamFailure(userID, err)
		return Result{}, err
	}

	// Record usage only after success, counting the words actually
	// processed (post-truncation).
	processed := int64(res.Metrics.InputWords)
	newRec, err := s.usage.Increment(ctx, userID, processed, s.clock.Now())
	if err != nil {
		// The user got their result; losing the increment is logged,
		// not surfaced.
		s.logger.Error().Err(err).Str("user_id", userID).Msg("usage increment failed")
		newRec = usage.Apply(rec, processed, now)
	}

	s.countSuccess(userTier.Name, res.Metrics)

	after := quota.Check(newRec, userTier, 0, now)
	return Result{
		RequestID:      s.idGen.New(),
		HumanizedText:  res.Text,
		Message:        buildMessage(res.Metrics, userTier),
		RemainingWords: after.RemainingWords,
		Metrics:        res.Metrics,
	}, nil
}

// Usage returns the rolled-over usage record plus the current quota
// standing for the account surface. Reads take no locks beyond the
// store's own and have no side effects.
func (s *HumanizerService) Usage(ctx context.Context, userID, tierName string) (usage.Record, quota.Decision, error) {
	now := s.clock.Now()
	cfg := s.config()
	userTier := s.resolveTier(ctx, userID, tierName, cfg.Catalog)

	rec, err := s.usage.Get(ctx, userID, now)
	if err != nil {
		return usage.Record{}, quota.Decision{}, fmt.Errorf("load usage: %w", err)
	}
	return rec, quota.Check(rec, userTier, 0, now), nil
}

// Tiers exposes the current catalog.
func (s *HumanizerService) Tiers() map[string]tier.Tier {
	return s.config().Catalog.List()
}

// UpstreamStatus probes the humanizer service.
func (s *HumanizerService) UpstreamStatus(ctx context.Context) error {
	return s.humanizer.Status(ctx)
}

// resolveTier picks the effective tier for a request. An explicit tier
// name wins; otherwise the user's stored plan applies. A paid plan with
// payment still pending is served at the default tier until payment
// clears. Unknown names fall open to the default tier with a warning.
func (s *HumanizerService) resolveTier(ctx context.Context, userID, tierName string, catalog *tier.Catalog) tier.Tier {
	name := tierName
	var paymentPending bool

	if name == "" {
		user, err := s.users.Get(ctx, userID)
		if err == nil {
			name = user.PlanName
			paymentPending = user.PaymentStatus == "Pending"
		} else if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("user lookup failed, using default tier")
		}
	}

	t, known := catalog.Get(name)
	if !known && name != "" {
		s.logger.Warn().Str("tier", name).Str("user_id", userID).Msg("unknown tier, falling back to default")
	}
	if paymentPending && t.PriceCents > 0 {
		return catalog.Default()
	}
	return t
}

func (s *HumanizerService) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.userLocks[h.Sum32()%uint32(len(s.userLocks))]
}

func (s *HumanizerService) countDenial(tierName, axis string) {
	if s.metrics != nil {
		s.metrics.QuotaDenials.WithLabelValues(tierName, axis).Inc()
	}
}

func (s *HumanizerService) countSuccess(tierName string, m ports.CallMetrics) {
	if s.metrics == nil {
		return
	}
	s.metrics.WordsProcessed.WithLabelValues(tierName).Add(float64(m.InputWords))
	fallback := "false"
	if m.FallbackUsed {
		fallback = "true"
	}
	s.metrics.UpstreamDuration.WithLabelValues(m.SuccessFormat, fallback).Observe(m.ResponseTime.Seconds())
	if m.Retries > 0 {
		s.metrics.UpstreamRetries.Add(float64(m.Retries))
	}
	if m.FallbackUsed {
		s.metrics.FallbackServed.Inc()
	}
}

func (s *HumanizerService) logUpstreamFailure(userID string, err error) {
	var unavailable *ports.UpstreamUnavailableError
	if errors.As(err, &unavailable) {
		evt := s.logger.Error().Str("user_id", userID).Str("url", unavailable.URL)
		for _, a := range unavailable.Attempts {
			evt = evt.Str("attempt_"+a.Format, fmt.Sprintf("%s status=%d %s", a.Status, a.HTTPStatus, a.Detail))
		}
		evt.Msg("humanizer unavailable")
		return
	}
	s.logger.Warn().Err(err).Str("user_id", userID).Msg("humanize call failed")
}

func buildMessage(m ports.CallMetrics, t tier.Tier) string {
	switch {
	case m.FallbackUsed:
		return "Text processed in offline mode. Results may be less polished than usual."
	case m.Truncated:
		return fmt.Sprintf("Text was truncated to %d words due to your plan limit.", t.WordLimit)
	default:
		return "Text humanized successfully!"
	}
}
