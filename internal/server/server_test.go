package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/frontend"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/monitoring"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/predictor"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/ratelimit"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePredictor returns a fixed answer and counts calls.
type fakePredictor struct {
	mu      sync.Mutex
	success float64
	calls   int
	last    features.Vector
}

func (f *fakePredictor) Classify(_ context.Context, vec features.Vector) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = vec
	if f.success > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (f *fakePredictor) ClassProbabilities(_ context.Context, _ features.Vector) (predictor.Probabilities, error) {
	return predictor.Probabilities{Failure: 1 - f.success, Success: f.success}, nil
}

func (f *fakePredictor) Info() predictor.Info {
	return predictor.Info{Format: "fake", Source: "memory"}
}

type testServer struct {
	router    *gin.Engine
	predictor *fakePredictor
	metrics   *monitoring.Metrics
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()
	return newTestServerWithOptions(t, deps, Options{Version: "test", AllowedOrigins: []string{"https://app.example"}})
}

func newTestServerWithOptions(t *testing.T, deps Deps, opts Options) *testServer {
	t.Helper()

	renderer, err := frontend.LoadRenderer(frontend.TemplatesFS())
	require.NoError(t, err)

	fake := &fakePredictor{success: 0.73456}
	metrics := monitoring.NewMetrics()

	deps.Service = prediction.NewService(fake, nil, metrics)
	deps.Renderer = renderer
	deps.Metrics = metrics

	return &testServer{
		router:    NewRouter(deps, opts),
		predictor: fake,
		metrics:   metrics,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAPIPredict(t *testing.T) {
	srv := newTestServer(t, Deps{})

	w := srv.do(postJSON(`{"funding_rounds": 2, "milestones": "1", "has_VC": true}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{
		"prediction":          float64(1),
		"success_probability": 73.46,
		"failure_probability": 26.54,
	}, body, "no input echo and no tier")

	assert.Equal(t, 1, srv.predictor.calls)
	idx, _ := features.IndexOf("funding_rounds")
	assert.Equal(t, 2.0, srv.predictor.last[idx])
	assert.NotEmpty(t, w.Header().Get(monitoring.RequestIDHeader))
}

func TestAPIPredictEmptyObjectIsZeroVector(t *testing.T) {
	srv := newTestServer(t, Deps{})

	w := srv.do(postJSON(`{}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, make(features.Vector, features.Len()), srv.predictor.last)
}

func TestAPIPredictRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed value", `{"funding_rounds": "abc"}`, `invalid value "abc" for field funding_rounds: must be a number`},
		{"whitespace value", `{"funding_rounds": "   "}`, `invalid value "   " for field funding_rounds`},
		{"array body", `[1, 2, 3]`, "request body must be a JSON object"},
		{"null body", `null`, "request body must be a JSON object"},
		{"empty body", ``, "request body must be a JSON object"},
		{"broken json", `{"funding_rounds": `, "request body must be a JSON object"},
		{"nested object", `{"milestones": {"count": 1}}`, "milestones"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{})
			w := srv.do(postJSON(tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.message)
			assert.Len(t, body, 1)
			assert.Zero(t, srv.predictor.calls)
		})
	}
}

func TestFormPredictEchoesInput(t *testing.T) {
	srv := newTestServer(t, Deps{})

	w := srv.do(postForm(url.Values{"funding_rounds": {"2"}, "milestones": {"1"}}))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Likely to Succeed")
	assert.Contains(t, body, "73.46%")
	assert.Contains(t, body, "26.54%")
	assert.Contains(t, body, "<td>funding_rounds</td><td>2</td>")
	assert.Contains(t, body, "<td>milestones</td><td>1</td>")
	assert.Contains(t, body, "<td>founded_year_2013</td><td>0</td>")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "nonce-")
}

func TestFormPredictMalformedValueRendersError(t *testing.T) {
	for _, value := range []string{"abc", "  \t "} {
		t.Run(value, func(t *testing.T) {
			srv := newTestServer(t, Deps{})

			w := srv.do(postForm(url.Values{"funding_rounds": {value}}))
			require.Equal(t, http.StatusOK, w.Code)

			body := w.Body.String()
			assert.Contains(t, body, "Prediction failed")
			assert.Contains(t, body, "funding_rounds")
			assert.NotContains(t, body, "Inputs used")
			assert.Zero(t, srv.predictor.calls)
			assert.Equal(t, int64(1), srv.metrics.GetPredictionStats()["validation_failures"])
		})
	}
}

func TestPages(t *testing.T) {
	srv := newTestServer(t, Deps{})

	for _, path := range []string{"/", "/predict", "/adaptivity"} {
		w := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html", path)
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"), path)
	}

	w := srv.do(httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Contains(t, w.Body.String(), `name="founded_year_1984"`)
}

func TestSchemaEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body SchemaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, features.Names(), body.Features)
	assert.Equal(t, features.Len(), body.Count)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, map[string]interface{}{"format": "fake", "source": "memory"}, body["model"])
	assert.NotContains(t, body, "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Deps{})
	srv.do(postJSON(`{}`))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	predictions := body["predictions"].(map[string]interface{})
	assert.Equal(t, float64(1), predictions["total"])
}

func TestCORSOnAPI(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := srv.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = postJSON(`{}`)
	req.Header.Set("Origin", "https://evil.example")
	w = srv.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnsupportedContentType(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "application/xml")
	w := srv.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.JSONEq(t, `{"error":"unsupported content type"}`, w.Body.String())
	assert.Zero(t, srv.predictor.calls)
}

func TestFormRouteRejectionsRenderResultsPage(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		limit   int
		request func() *http.Request
		status  int
		message string
	}{
		{
			name:    "unsupported content type",
			request: func() *http.Request { return xmlForm() },
			status:  http.StatusUnsupportedMediaType,
			message: "unsupported content type",
		},
		{
			name:    "body too large",
			opts:    Options{Security: security.SecurityConfig{MaxBodyBytes: 8}},
			request: func() *http.Request { return postForm(url.Values{"funding_rounds": {"12345678"}}) },
			status:  http.StatusRequestEntityTooLarge,
			message: "request body too large",
		},
		{
			name:    "rate limited",
			limit:   1,
			request: func() *http.Request { return postForm(url.Values{"funding_rounds": {"2"}}) },
			status:  http.StatusTooManyRequests,
			message: "Rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{}
			if tt.limit > 0 {
				limiter := ratelimit.NewRateLimiter(nil, ratelimit.Config{PerMinute: tt.limit}, nil)
				defer limiter.Close()
				deps.Limiter = limiter
			}
			srv := newTestServerWithOptions(t, deps, tt.opts)

			w := srv.do(tt.request())
			for i := 0; i < tt.limit; i++ {
				w = srv.do(tt.request())
			}

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), "nonce-")
			body := w.Body.String()
			assert.Contains(t, body, "Prediction failed")
			assert.Contains(t, body, tt.message)
			assert.Equal(t, tt.limit, srv.predictor.calls, "rejected request reached the predictor")
		})
	}
}

func xmlForm() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("<a/>"))
	req.Header.Set("Content-Type", "application/xml")
	return req
}

func TestForwardedForIsIgnoredFromUntrustedPeers(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(nil, ratelimit.Config{PerMinute: 1}, nil)
	defer limiter.Close()

	srv := newTestServer(t, Deps{Limiter: limiter})

	codes := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		req := postJSON(`{}`)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		codes = append(codes, srv.do(req).Code)
	}

	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes, "every request comes from the same peer")
}

func TestForwardedForIsHonouredFromTrustedProxies(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(nil, ratelimit.Config{PerMinute: 1}, nil)
	defer limiter.Close()

	// httptest requests arrive from 192.0.2.1.
	srv := newTestServerWithOptions(t, Deps{Limiter: limiter}, Options{
		Security: security.SecurityConfig{TrustedProxies: []string{"192.0.2.0/24"}},
	})

	send := func(client string) int {
		req := postJSON(`{}`)
		req.Header.Set("X-Forwarded-For", client)
		return srv.do(req).Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
}

func TestPredictRoutesAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(nil, ratelimit.Config{PerMinute: 1}, nil)
	defer limiter.Close()

	srv := newTestServer(t, Deps{Limiter: limiter})

	assert.Equal(t, http.StatusOK, srv.do(postJSON(`{}`)).Code)
	w := srv.do(postJSON(`{}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, w.Body.String())

	// Schema lookups are not limited.
	assert.Equal(t, http.StatusOK, srv.do(httptest.NewRequest(http.MethodGet, "/api/schema", nil)).Code)
}

func TestRecoveryDoesNotLeakPanics(t *testing.T) {
	srv := newTestServer(t, Deps{})
	srv.router.GET("/boom", func(c *gin.Context) { panic("secret detail") })

	w := srv.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestPagesAreCompressed(t *testing.T) {
	srv := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := srv.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	page, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(page), `name="funding_rounds"`)
}
