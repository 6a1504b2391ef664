package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/adapters/upstream"
	"github.com/pkkmi/andikar-gate/domain/humanize"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/ports"
)

var testTier = tier.Tier{Name: "Basic", WordLimit: 1500}

func newClient(t *testing.T, cfg upstream.Config) *upstream.Client {
	t.Helper()
	c, err := upstream.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestHumanize_FirstFormatSucceeds(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"result": "humanized output text"})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, MaxRetries: -1})

	res, err := c.Humanize(context.Background(), "some machine written text", testTier)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "humanized output text" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Metrics.SuccessFormat != humanize.FormatJSONInputText {
		t.Errorf("format = %q, want %q", res.Metrics.SuccessFormat, humanize.FormatJSONInputText)
	}
	if gotBody["input_text"] != "some machine written text" {
		t.Errorf("upstream saw body %v", gotBody)
	}
	if res.Metrics.FallbackUsed {
		t.Error("fallback flagged on a remote success")
	}
	if res.Metrics.InputWords != 4 || res.Metrics.OutputWords != 3 {
		t.Errorf("words = %d in / %d out, want 4 / 3", res.Metrics.InputWords, res.Metrics.OutputWords)
	}
}

func TestHumanize_FallsThroughToWorkingFormat(t *testing.T) {
	// The upstream only understands form encoding; JSON formats get 400
	// and must be skipped without retrying.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		r.ParseForm()
		json.NewEncoder(w).Encode(map[string]string{"humanized_text": "ok " + r.PostFormValue("text")})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, MaxRetries: -1})

	res, err := c.Humanize(context.Background(), "hello there", testTier)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics.SuccessFormat != humanize.FormatForm {
		t.Errorf("format = %q, want %q", res.Metrics.SuccessFormat, humanize.FormatForm)
	}
	if res.Text != "ok hello there" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Metrics.Retries != 0 {
		t.Errorf("retries = %d, want 0 (4xx must not retry)", res.Metrics.Retries)
	}
}

func TestHumanize_RetriesTransientFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps at least one second")
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "eventually fine"})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, MaxRetries: 1})

	start := time.Now()
	res, err := c.Humanize(context.Background(), "retry me", testTier)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics.Retries != 1 {
		t.Errorf("retries = %d, want 1", res.Metrics.Retries)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retried after %v, backoff floor is 1s", elapsed)
	}
	if res.Text != "eventually fine" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestHumanize_AllFormatsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown schema", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, MaxRetries: -1, FallbackEnabled: false})

	_, err := c.Humanize(context.Background(), "nope", testTier)
	var rejected *ports.UpstreamRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want UpstreamRejectedError", err)
	}
	if len(rejected.Attempts) != len(humanize.DefaultFormats()) {
		t.Errorf("attempts = %d, want one per format", len(rejected.Attempts))
	}
}

func TestHumanize_DeadUpstreamServesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Nothing listening anymore.

	c := newClient(t, upstream.Config{
		BaseURL:         srv.URL,
		Formats:         []string{humanize.FormatJSONInputText},
		MaxRetries:      -1,
		FallbackEnabled: true,
	})

	res, err := c.Humanize(context.Background(), "the upstream is gone but the user still gets text", testTier)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Metrics.FallbackUsed {
		t.Error("fallback not flagged")
	}
	if !strings.Contains(res.Text, humanize.FallbackNotice) {
		t.Error("fallback output missing the offline notice")
	}
	if res.Metrics.SuccessFormat != "" {
		t.Errorf("format = %q, want empty for fallback", res.Metrics.SuccessFormat)
	}
}

func TestHumanize_DeadUpstreamFallbackDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newClient(t, upstream.Config{
		BaseURL:    srv.URL,
		Formats:    []string{humanize.FormatJSONInputText},
		MaxRetries: -1,
	})

	_, err := c.Humanize(context.Background(), "no safety net", testTier)
	var unavailable *ports.UpstreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want UpstreamUnavailableError", err)
	}
}

func TestHumanize_UnrecognizableResponseFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"status": 1})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{
		BaseURL:         srv.URL,
		Formats:         []string{humanize.FormatJSONInputText},
		MaxRetries:      -1,
		FallbackEnabled: true,
	})

	res, err := c.Humanize(context.Background(), "shape shifted again", testTier)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Metrics.FallbackUsed {
		t.Error("200 with unknown shape should degrade to the fallback")
	}
}

func TestHumanize_TruncatesToTierLimit(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		received = body["input_text"]
		json.NewEncoder(w).Encode(map[string]string{"result": received})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, MaxRetries: -1})

	res, err := c.Humanize(context.Background(), "one two three four five", tier.Tier{Name: "Free", WordLimit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Metrics.Truncated {
		t.Error("truncation not flagged")
	}
	if res.Metrics.InputWords != 3 {
		t.Errorf("input words = %d, want 3", res.Metrics.InputWords)
	}
	if humanize.CountWords(received) != 3 {
		t.Errorf("upstream received %q, want 3 words", received)
	}
}

func TestHumanize_SendsAuthAndUserAgent(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL, APIKey: "sekrit", MaxRetries: -1})

	if _, err := c.Humanize(context.Background(), "hi", testTier); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != "andikar-gate/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestHumanize_KeepsBaseURLPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL + "/api", MaxRetries: -1})

	if _, err := c.Humanize(context.Background(), "hi", testTier); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/humanize_text" {
		t.Errorf("path = %q, want /api/humanize_text", gotPath)
	}
}

func TestStatus_KeepsBaseURLPathPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL + "/api"})
	if err := c.Status(context.Background()); err != nil {
		t.Errorf("status = %v, want nil via the prefixed endpoint", err)
	}
}

func TestStatus_ProbesLegacyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL})
	if err := c.Status(context.Background()); err != nil {
		t.Errorf("status = %v, want nil via /health", err)
	}
}

func TestStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newClient(t, upstream.Config{BaseURL: srv.URL})
	if err := c.Status(context.Background()); err == nil {
		t.Error("status = nil, want error for a dead upstream")
	}
}
