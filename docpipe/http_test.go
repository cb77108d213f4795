package docpipe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, p *Pipeline, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	p.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHTTP_SSML(t *testing.T) {
	p := newTestPipeline(t, nil)

	rec := serve(t, p, http.MethodPost, "/v1/ssml", `{"content":"# Hi\n\nPlain words.","platform":"google"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Valid || !strings.HasPrefix(res.SSML, "<speak>") {
		t.Fatalf("result: %+v", res)
	}
}

func TestHTTP_Errors(t *testing.T) {
	p := newTestPipeline(t, nil)

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad json", http.MethodPost, "/v1/ssml", `{`, http.StatusBadRequest},
		{"empty content", http.MethodPost, "/v1/ssml", `{"content":""}`, http.StatusUnprocessableEntity},
		{"unknown platform", http.MethodPost, "/v1/validate", `{"ssml":"<speak/>","platform":"x"}`, http.StatusUnprocessableEntity},
		{"no journal", http.MethodGet, "/v1/runs", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/v1/runs?limit=abc", "", http.StatusBadRequest},
		{"prune no journal", http.MethodDelete, "/v1/runs?older_than=1h", "", http.StatusNotFound},
		{"bad older_than", http.MethodDelete, "/v1/runs?older_than=soon", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, p, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tc.want, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("body: %s", rec.Body)
			}
		})
	}
}

func TestHTTP_CacheEndpoints(t *testing.T) {
	p := newTestPipeline(t, nil)
	serve(t, p, http.MethodPost, "/v1/ssml", `{"content":"Cache me."}`)

	rec := serve(t, p, http.MethodGet, "/v1/cache/stats", "")
	var stats struct {
		Entries int  `json:"entries"`
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if !stats.Enabled || stats.Entries != 1 {
		t.Fatalf("stats: %s", rec.Body)
	}

	rec = serve(t, p, http.MethodDelete, "/v1/cache", "")
	if !strings.Contains(rec.Body.String(), `"removed":1`) {
		t.Fatalf("clear: %s", rec.Body)
	}
	rec = serve(t, p, http.MethodPost, "/v1/cache/cleanup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup status %d", rec.Code)
	}
}

func TestHTTP_RunsAndMetrics(t *testing.T) {
	p := newTestPipeline(t, func(c *Config) { c.Journal.Path = ":memory:" })
	serve(t, p, http.MethodPost, "/v1/ssml", `{"content":"Journal me."}`)

	rec := serve(t, p, http.MethodGet, "/v1/runs?limit=5", "")
	var body struct {
		Runs []struct {
			ID string `json:"run_id"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 1 || body.Runs[0].ID == "" {
		t.Fatalf("runs: %s", rec.Body)
	}

	rec = serve(t, p, http.MethodDelete, "/v1/runs?older_than=1h", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"removed":0`) {
		t.Fatalf("prune: %d %s", rec.Code, rec.Body)
	}

	rec = serve(t, p, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "speakdown_conversions_total") {
		t.Fatalf("metrics missing conversions: %s", rec.Body)
	}

	rec = serve(t, p, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}

func TestHTTP_RateLimit(t *testing.T) {
	// WHAT: the configured per-client budget applies to /v1 but not /health.
	p := newTestPipeline(t, func(c *Config) { c.HTTP.RatePerMinute = 1 })
	h := p.Routes()

	call := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}
	if code := call("/v1/cache/stats"); code != http.StatusOK {
		t.Fatalf("first call: %d", code)
	}
	if code := call("/v1/cache/stats"); code != http.StatusTooManyRequests {
		t.Fatalf("second call: %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := call("/health"); code != http.StatusOK {
			t.Fatalf("health: %d", code)
		}
	}
}

func TestHTTP_SecurityHeaders(t *testing.T) {
	p := newTestPipeline(t, nil)
	rec := serve(t, p, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("headers: %v", rec.Header())
	}
	rec = serve(t, p, http.MethodHead, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health: %d", rec.Code)
	}
}
