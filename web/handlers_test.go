package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/adapters/clock"
	"github.com/pkkmi/andikar-gate/adapters/idgen"
	"github.com/pkkmi/andikar-gate/adapters/memory"
	"github.com/pkkmi/andikar-gate/app"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/ports"
	"github.com/pkkmi/andikar-gate/web"
)

// fakeHumanizer echoes input and toggles between healthy and dead.
type fakeHumanizer struct {
	err      error
	statusOK bool
}

func (f *fakeHumanizer) Humanize(ctx context.Context, text string, t tier.Tier) (ports.HumanizeResult, error) {
	if f.err != nil {
		return ports.HumanizeResult{}, f.err
	}
	words := len(strings.Fields(text))
	return ports.HumanizeResult{
		Text: text,
		Metrics: ports.CallMetrics{
			InputWords:    words,
			OutputWords:   words,
			SuccessFormat: "json_input_text",
		},
	}, nil
}

func (f *fakeHumanizer) Status(ctx context.Context) error {
	if f.statusOK {
		return nil
	}
	return errors.New("connection refused")
}

type testServer struct {
	srv       *httptest.Server
	humanizer *fakeHumanizer
	clock     *clock.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	limiter := memory.NewRateLimitStore(memory.RateLimitConfig{NumShards: 4})
	t.Cleanup(func() { limiter.Close() })

	fake := &fakeHumanizer{statusOK: true}
	fc := clock.NewFake(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	svc := app.NewHumanizerService(app.Deps{
		Users:     memory.NewUserStore(),
		Usage:     memory.NewUsageStore(4),
		RateLimit: limiter,
		Humanizer: fake,
		Clock:     fc,
		IDGen:     idgen.NewSequential("req"),
		Logger:    zerolog.Nop(),
	}, app.DynamicConfig{
		Catalog:    tier.NewCatalog(tier.Defaults(), ""),
		RateWindow: time.Minute,
	})

	handler := web.NewHandler(web.Deps{
		Humanizer: svc,
		Detector:  app.NewDetectService(svc, zerolog.Nop()),
		Logger:    zerolog.Nop(),
		Version:   "test",
	})

	srv := httptest.NewServer(handler.Router(web.RouterConfig{}))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, humanizer: fake, clock: fc}
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHumanizeEndpoint_Success(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{
		Text:   "make this sound human please",
		UserID: "u1",
		Tier:   "Free",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[web.HumanizeResponse](t, resp)
	if body.HumanizedText != "make this sound human please" {
		t.Errorf("text = %q", body.HumanizedText)
	}
	if body.RequestID == "" {
		t.Error("missing request_id")
	}
	if body.RemainingWords != 495 {
		t.Errorf("remaining = %d, want 495", body.RemainingWords)
	}
	if body.Metrics.InputWords != 5 {
		t.Errorf("input_words = %d", body.Metrics.InputWords)
	}
}

func TestHumanizeEndpoint_UserIDFromHeader(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/v1/humanize",
		strings.NewReader(`{"text":"hello there","tier":"Free"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "header-user")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHumanizeEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", "{nope", "bad_request"},
		{"missing user", `{"text":"hello"}`, "missing_user"},
		{"empty text", `{"text":"  ","user_id":"u1"}`, "empty_text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.srv.URL+"/api/v1/humanize", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			body := decodeBody[web.ErrorResponseBody](t, resp)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHumanizeEndpoint_QuotaExceeded(t *testing.T) {
	ts := newTestServer(t)

	long := strings.TrimSpace(strings.Repeat("word ", 500))
	resp := ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{Text: long, UserID: "u1", Tier: "Free"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}

	resp = ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{Text: "one more word", UserID: "u1", Tier: "Free"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Quota-Remaining"); got != "0" {
		t.Errorf("X-Quota-Remaining = %q, want 0", got)
	}
	body := decodeBody[web.ErrorResponseBody](t, resp)
	if body.Error.Code != "quota_exceeded" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestHumanizeEndpoint_RateLimited(t *testing.T) {
	ts := newTestServer(t)

	// Free allows 5 calls per window.
	var resp *http.Response
	for i := 0; i < 6; i++ {
		resp = ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{Text: "hi there", UserID: "u1", Tier: "Free"})
		if i < 5 {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("call %d status = %d", i+1, resp.StatusCode)
			}
		}
	}

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	body := decodeBody[web.ErrorResponseBody](t, resp)
	if body.Error.Code != "rate_limit_exceeded" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestHumanizeEndpoint_UpstreamUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.humanizer.err = &ports.UpstreamUnavailableError{URL: "http://dead"}

	resp := ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{Text: "hello", UserID: "u1", Tier: "Free"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	body := decodeBody[web.ErrorResponseBody](t, resp)
	if body.Error.Code != "upstream_unavailable" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestDetectEndpoint_FeatureGated(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/detect", web.HumanizeRequest{Text: "score me", UserID: "u1", Tier: "Free"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for Free", resp.StatusCode)
	}
	body := decodeBody[web.ErrorResponseBody](t, resp)
	if body.Error.Code != "feature_not_included" {
		t.Errorf("code = %q", body.Error.Code)
	}

	resp = ts.postJSON(t, "/api/v1/detect", web.HumanizeRequest{Text: "score me please now", UserID: "u1", Tier: "Basic"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 for Basic", resp.StatusCode)
	}
}

func TestWordCountEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/word_count", map[string]string{"text": "one two three"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]int](t, resp)
	if body["word_count"] != 3 {
		t.Errorf("word_count = %d, want 3", body["word_count"])
	}
}

func TestUsageEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/v1/humanize", web.HumanizeRequest{Text: "one two three four", UserID: "u1", Tier: "Free"})
	resp.Body.Close()

	resp, err := http.Get(ts.srv.URL + "/api/v1/usage?user_id=u1&tier=Free")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[web.UsageResponse](t, resp)
	if body.DailyWords != 4 || body.RequestsCount != 1 {
		t.Errorf("usage = %+v", body)
	}
	if body.RemainingWords != 496 {
		t.Errorf("remaining = %d, want 496", body.RemainingWords)
	}

	resp, err = http.Get(ts.srv.URL + "/api/v1/usage")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status without user = %d, want 400", resp.StatusCode)
	}
}

func TestPlansEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/plans")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string][]web.PlanInfo](t, resp)
	if len(body["plans"]) != 3 {
		t.Errorf("plans = %d, want 3", len(body["plans"]))
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}

	ts.humanizer.statusOK = false
	resp, err = http.Get(ts.srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	body = decodeBody[map[string]any](t, resp)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded with a dead upstream", body["status"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.humanizer.statusOK = false

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := http.Get(ts.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200 even with upstream down", path, resp.StatusCode)
		}
	}
}

func TestVersionEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["version"] != "test" || body["service"] != "andikar-gate" {
		t.Errorf("version body = %v", body)
	}
}
