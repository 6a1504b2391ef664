// Package upstream implements the resilient HTTP client for the
// humanizer service. The upstream's request schema has changed silently
// several times, so the client brute-forces a configurable list of
// candidate encodings, retries transient failures with backoff, and
// degrades to a local transform when the service is unreachable.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/pkkmi/andikar-gate/domain/humanize"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/ports"
)

// Config contains configuration for the humanizer client.
type Config struct {
	BaseURL          string
	Path             string        // Humanize endpoint path (default /humanize_text)
	APIKey           string        // Sent as a Bearer token when set
	Timeout          time.Duration // Per-attempt timeout (default 30s)
	LongInputWords   int           // Inputs above this get the long timeout (default 1000)
	LongInputTimeout time.Duration // Default 2x Timeout
	Formats          []string      // Candidate encodings in priority order
	ResultKeys       []string      // Result-key probe order
	MaxRetries       int           // Retries per format on transient failure (default 2)
	BackoffInitial   time.Duration // First retry delay (default 1s, never lower)
	FallbackEnabled  bool          // Local degraded transform on total failure
	UserAgent        string
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/humanize_text"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.LongInputWords <= 0 {
		c.LongInputWords = 1000
	}
	if c.LongInputTimeout <= 0 {
		c.LongInputTimeout = 2 * c.Timeout
	}
	if len(c.Formats) == 0 {
		c.Formats = humanize.DefaultFormats()
	}
	if len(c.ResultKeys) == 0 {
		c.ResultKeys = humanize.DefaultResultKeys()
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.BackoffInitial < time.Second {
		c.BackoffInitial = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "andikar-gate/1.0"
	}
	return c
}

// Client is the resilient humanizer upstream client.
type Client struct {
	cfg     Config
	baseURL *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[remoteResult]
	logger  zerolog.Logger
}

type remoteResult struct {
	text    string
	format  string
	retries int
}

// errRemoteExhausted signals that every format and retry failed; the
// attempt log travels alongside, not inside, the error.
var errRemoteExhausted = errors.New("all formats exhausted")

// New creates a humanizer client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		// Per-attempt deadlines come from the request context, not a
		// client-wide timeout, because long inputs get a longer budget.
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With().Str("component", "humanizer_client").Logger(),
	}

	c.breaker = gobreaker.NewCircuitBreaker[remoteResult](gobreaker.Settings{
		Name:    "humanizer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return c, nil
}

// Humanize processes text under the given tier's limits. The call
// degrades rather than fails: a dead upstream yields a local transform
// annotated as fallback, and only a disabled or failed fallback
// surfaces UpstreamUnavailableError.
func (c *Client) Humanize(ctx context.Context, text string, t tier.Tier) (ports.HumanizeResult, error) {
	start := time.Now()

	// Never send more words than the user is entitled to process.
	text, truncated := humanize.Truncate(text, t.WordLimit)
	inputWords := humanize.CountWords(text)

	attempts := &attemptLog{}
	res, err := c.breaker.Execute(func() (remoteResult, error) {
		return c.tryRemote(ctx, text, inputWords, attempts)
	})
	if err == nil {
		return ports.HumanizeResult{
			Text: res.text,
			Metrics: ports.CallMetrics{
				ResponseTime:  time.Since(start),
				InputWords:    inputWords,
				OutputWords:   humanize.CountWords(res.text),
				Retries:       res.retries,
				SuccessFormat: res.format,
				Truncated:     truncated,
			},
		}, nil
	}

	// Context errors are the caller's problem, not the upstream's.
	if ctx.Err() != nil {
		return ports.HumanizeResult{}, ctx.Err()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Debug().Msg("circuit open, skipping remote attempts")
	}

	if !c.cfg.FallbackEnabled {
		return ports.HumanizeResult{}, c.exhaustionError(attempts.all)
	}

	// Degrade, do not fail the user outright.
	out := humanize.Fallback(text, humanize.IntensityForTier(t.Name), time.Now().UnixNano())
	if out == "" {
		return ports.HumanizeResult{}, c.exhaustionError(attempts.all)
	}
	c.logger.Warn().
		Int("attempts", len(attempts.all)).
		Msg("humanizer upstream unavailable, served local fallback")

	return ports.HumanizeResult{
		Text: out + humanize.FallbackNotice,
		Metrics: ports.CallMetrics{
			ResponseTime: time.Since(start),
			InputWords:   inputWords,
			OutputWords:  humanize.CountWords(out),
			Retries:      attempts.retries,
			FallbackUsed: true,
			Truncated:    truncated,
		},
	}, nil
}

// exhaustionError picks the caller-facing error after total exhaustion.
func (c *Client) exhaustionError(attempts []ports.Attempt) error {
	allFatal := len(attempts) > 0
	for _, a := range attempts {
		if a.Status != ports.AttemptFatal {
			allFatal = false
			break
		}
	}
	if allFatal {
		return &ports.UpstreamRejectedError{Attempts: attempts}
	}
	return &ports.UpstreamUnavailableError{URL: c.baseURL.String(), Attempts: attempts}
}

// attemptLog collects per-attempt diagnostics across the breaker boundary.
type attemptLog struct {
	all     []ports.Attempt
	retries int
}

// tryRemote walks the candidate formats in priority order, retrying
// transient failures, and returns the first successful result.
func (c *Client) tryRemote(ctx context.Context, text string, inputWords int, log *attemptLog) (remoteResult, error) {
	timeout := c.cfg.Timeout
	if inputWords > c.cfg.LongInputWords {
		timeout = c.cfg.LongInputTimeout
	}

	for _, format := range c.cfg.Formats {
		req, err := humanize.EncodeRequest(format, text)
		if err != nil {
			c.logger.Error().Err(err).Str("format", format).Msg("skipping unknown format")
			continue
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.cfg.BackoffInitial
		bo.RandomizationFactor = 0

		for try := 0; ; try++ {
			attempt := c.doAttempt(ctx, format, req, timeout)
			log.all = append(log.all, attempt)

			switch attempt.Status {
			case ports.AttemptSuccess:
				return remoteResult{text: attempt.Detail, format: format, retries: log.retries}, nil
			case ports.AttemptFatal:
				// 4xx: this format is wrong for the current schema.
				// Move on without retrying.
				c.logger.Debug().
					Str("format", format).
					Int("status", attempt.HTTPStatus).
					Msg("format rejected, trying next")
			case ports.AttemptRetryable:
				if try < c.cfg.MaxRetries {
					log.retries++
					if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
						return remoteResult{}, err
					}
					continue
				}
				c.logger.Debug().
					Str("format", format).
					Int("retries", try).
					Str("detail", attempt.Detail).
					Msg("format exhausted retries")
			}
			break
		}
	}

	return remoteResult{}, errRemoteExhausted
}

// doAttempt performs one HTTP request in one format and classifies it.
// For successful attempts Detail carries the extracted result text.
func (c *Client) doAttempt(ctx context.Context, format string, encoded humanize.Request, timeout time.Duration) ports.Attempt {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// JoinPath keeps any prefix on the base URL, so a deployment behind
	// /api still reaches /api/humanize_text.
	u := c.baseURL.JoinPath(c.cfg.Path)
	if encoded.Query != nil {
		u.RawQuery = encoded.Query.Encode()
	}

	var body io.Reader
	if len(encoded.Body) > 0 {
		body = bytes.NewReader(encoded.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, u.String(), body)
	if err != nil {
		return ports.Attempt{Format: format, Status: ports.AttemptFatal, Detail: err.Error()}
	}
	if encoded.ContentType != "" {
		httpReq.Header.Set("Content-Type", encoded.ContentType)
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		// Timeouts and connection errors are transient by policy.
		return ports.Attempt{
			Format:       format,
			Status:       ports.AttemptRetryable,
			ResponseTime: elapsed,
			Detail:       err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.Attempt{
			Format:       format,
			Status:       ports.AttemptRetryable,
			HTTPStatus:   resp.StatusCode,
			ResponseTime: elapsed,
			Detail:       err.Error(),
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		result, ok := humanize.ProbeResult(respBody, c.cfg.ResultKeys)
		if !ok {
			// 200 with no recognizable shape: treated like a server
			// error for retry purposes.
			return ports.Attempt{
				Format:       format,
				Status:       ports.AttemptRetryable,
				HTTPStatus:   resp.StatusCode,
				ResponseTime: elapsed,
				Detail:       "unexpected response shape: " + snippet(respBody),
			}
		}
		return ports.Attempt{
			Format:       format,
			Status:       ports.AttemptSuccess,
			HTTPStatus:   resp.StatusCode,
			ResponseTime: elapsed,
			Detail:       result,
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return ports.Attempt{
			Format:       format,
			Status:       ports.AttemptRetryable,
			HTTPStatus:   resp.StatusCode,
			ResponseTime: elapsed,
			Detail:       snippet(respBody),
		}
	default:
		return ports.Attempt{
			Format:       format,
			Status:       ports.AttemptFatal,
			HTTPStatus:   resp.StatusCode,
			ResponseTime: elapsed,
			Detail:       snippet(respBody),
		}
	}
}

// Status probes upstream liveness: /status first, /health as the legacy
// alternative. A 200 from either is the only reliable signal.
func (c *Client) Status(ctx context.Context) error {
	var lastErr error
	for _, path := range []string{"/status", "/health"} {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.probe(probeCtx, path)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("humanizer status probe failed: %w", lastErr)
}

func (c *Client) probe(ctx context.Context, path string) error {
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d from %s", resp.StatusCode, path)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

var _ ports.Humanizer = (*Client)(nil)
