package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pkkmi/andikar-gate/app"
	"github.com/pkkmi/andikar-gate/domain/humanize"
	"github.com/pkkmi/andikar-gate/ports"
)

// ErrorResponseBody represents an error response body.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HumanizeRequest is the request body for POST /api/v1/humanize.
type HumanizeRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
	Tier   string `json:"tier,omitempty"`
}

// HumanizeResponse is the response for POST /api/v1/humanize.
type HumanizeResponse struct {
	RequestID      string      `json:"request_id"`
	HumanizedText  string      `json:"humanized_text"`
	Message        string      `json:"message"`
	RemainingWords int64       `json:"remaining_words"`
	Metrics        CallMetrics `json:"metrics"`
}

// CallMetrics describes what one humanize call cost.
type CallMetrics struct {
	InputWords     int    `json:"input_words"`
	OutputWords    int    `json:"output_words"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Retries        int    `json:"retries"`
	FallbackUsed   bool   `json:"fallback_used"`
	Format         string `json:"format,omitempty"`
	Truncated      bool   `json:"truncated"`
}

// UsageResponse is the response for GET /api/v1/usage.
type UsageResponse struct {
	UserID         string     `json:"user_id"`
	RequestsCount  int64      `json:"requests_count"`
	TotalWords     int64      `json:"total_words"`
	DailyWords     int64      `json:"daily_words"`
	MonthlyWords   int64      `json:"monthly_words"`
	RemainingWords int64      `json:"remaining_words"`
	ResetsAt       *time.Time `json:"resets_at,omitempty"`
	LastRequestAt  *time.Time `json:"last_request_at,omitempty"`
}

// DetectResponse is the response for POST /api/v1/detect.
type DetectResponse struct {
	AIScore    int            `json:"ai_score"`
	HumanScore int            `json:"human_score"`
	Analysis   DetectAnalysis `json:"analysis"`
}

// DetectAnalysis breaks the detection score into its signals.
type DetectAnalysis struct {
	FormalLanguage     int `json:"formal_language"`
	RepetitivePatterns int `json:"repetitive_patterns"`
	SentenceUniformity int `json:"sentence_uniformity"`
}

// PlanInfo describes one tier for GET /api/v1/plans.
type PlanInfo struct {
	Name              string   `json:"name"`
	WordLimit         int      `json:"word_limit"`
	DailyWordLimit    int      `json:"daily_word_limit,omitempty"`
	MonthlyWordLimit  int      `json:"monthly_word_limit,omitempty"`
	PriceCents        int64    `json:"price_cents"`
	MaxCallsPerWindow int      `json:"max_calls_per_window"`
	Features          []string `json:"features,omitempty"`
}

// Humanize processes one text through the gateway pipeline.
func (h *Handler) Humanize(w http.ResponseWriter, r *http.Request) {
	var req HumanizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON")
		return
	}

	userID := resolveUserID(r, req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", "Provide user_id in the body or the X-User-ID header")
		return
	}

	result, err := h.humanizer.Humanize(r.Context(), userID, req.Tier, req.Text)
	if err != nil {
		h.writeHumanizeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HumanizeResponse{
		RequestID:      result.RequestID,
		HumanizedText:  result.HumanizedText,
		Message:        result.Message,
		RemainingWords: result.RemainingWords,
		Metrics: CallMetrics{
			InputWords:     result.Metrics.InputWords,
			OutputWords:    result.Metrics.OutputWords,
			ResponseTimeMs: result.Metrics.ResponseTime.Milliseconds(),
			Retries:        result.Metrics.Retries,
			FallbackUsed:   result.Metrics.FallbackUsed,
			Format:         result.Metrics.SuccessFormat,
			Truncated:      result.Metrics.Truncated,
		},
	})
}

func (h *Handler) writeHumanizeError(w http.ResponseWriter, err error) {
	var quotaErr *ports.QuotaExceededError
	var rateErr *ports.RateLimitExceededError
	var rejectedErr *ports.UpstreamRejectedError
	var unavailableErr *ports.UpstreamUnavailableError

	switch {
	case errors.Is(err, ports.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "empty_text", "Text must contain at least one word")

	case errors.As(err, &quotaErr):
		w.Header().Set("X-Quota-Remaining", strconv.FormatInt(quotaErr.RemainingWords, 10))
		if !quotaErr.ResetsAt.IsZero() {
			w.Header().Set("X-Quota-Reset", quotaErr.ResetsAt.UTC().Format(time.RFC3339))
		}
		writeError(w, http.StatusForbidden, "quota_exceeded", err.Error())

	case errors.As(err, &rateErr):
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs(rateErr.RetryAfter)))
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", err.Error())

	case errors.As(err, &rejectedErr):
		writeError(w, http.StatusBadGateway, "upstream_rejected", err.Error())

	case errors.As(err, &unavailableErr):
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", err.Error())

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "Request timed out")

	default:
		h.logger.Error().Err(err).Msg("humanize request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// Detect scores text for AI-likeness.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var req HumanizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON")
		return
	}

	userID := resolveUserID(r, req.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", "Provide user_id in the body or the X-User-ID header")
		return
	}

	result, err := h.detector.Detect(r.Context(), userID, req.Tier, req.Text)
	if err != nil {
		var featureErr *app.ErrFeatureNotIncluded
		switch {
		case errors.Is(err, ports.ErrEmptyText):
			writeError(w, http.StatusBadRequest, "empty_text", "Text must contain at least one word")
		case errors.As(err, &featureErr):
			writeError(w, http.StatusForbidden, "feature_not_included", err.Error())
		default:
			h.logger.Error().Err(err).Msg("detect request failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, DetectResponse{
		AIScore:    result.AIScore,
		HumanScore: result.HumanScore,
		Analysis: DetectAnalysis{
			FormalLanguage:     result.Analysis.FormalLanguage,
			RepetitivePatterns: result.Analysis.RepetitivePatterns,
			SentenceUniformity: result.Analysis.SentenceUniformity,
		},
	})
}

// WordCount counts the words in a text without consuming quota.
func (h *Handler) WordCount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"word_count": humanize.CountWords(req.Text),
	})
}

// Usage returns the caller's current usage and quota standing.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r, r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", "Provide user_id as a query parameter or the X-User-ID header")
		return
	}

	rec, decision, err := h.humanizer.Usage(r.Context(), userID, r.URL.Query().Get("tier"))
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("usage lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	resp := UsageResponse{
		UserID:         userID,
		RequestsCount:  rec.RequestsCount,
		TotalWords:     rec.TotalWords,
		DailyWords:     rec.DailyWords,
		MonthlyWords:   rec.MonthlyWords,
		RemainingWords: decision.RemainingWords,
	}
	if !decision.ResetsAt.IsZero() {
		t := decision.ResetsAt.UTC()
		resp.ResetsAt = &t
	}
	if !rec.LastRequestAt.IsZero() {
		t := rec.LastRequestAt.UTC()
		resp.LastRequestAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// Plans lists the available tiers.
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	tiers := h.humanizer.Tiers()
	plans := make([]PlanInfo, 0, len(tiers))
	for _, t := range tiers {
		plans = append(plans, PlanInfo{
			Name:              t.Name,
			WordLimit:         t.WordLimit,
			DailyWordLimit:    t.DailyWordLimit,
			MonthlyWordLimit:  t.MonthlyWordLimit,
			PriceCents:        t.PriceCents,
			MaxCallsPerWindow: t.MaxCallsPerWindow,
			Features:          t.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// Status reports upstream humanizer reachability.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.humanizer.UpstreamStatus(ctx); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "degraded",
			"upstream": "unreachable",
			"detail":   err.Error(),
			"uptime":   time.Since(h.startTime).Round(time.Second).String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"upstream": "reachable",
		"uptime":   time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Liveness returns a simple liveness check.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness checks if the service and upstream are ready to handle
// traffic. The gateway still serves degraded responses when the
// upstream is down, so an unreachable upstream is reported but does
// not fail readiness.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.humanizer.UpstreamStatus(ctx); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"upstream": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
		"service": "andikar-gate",
	})
}

// resolveUserID picks the user identity from an explicit value or the
// X-User-ID header.
func resolveUserID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return r.Header.Get("X-User-ID")
}

func retryAfterSecs(d time.Duration) int {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
