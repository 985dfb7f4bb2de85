package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pvinsight/internal/config"
	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/infrastructure"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"generated", ""},
		{"propagated", "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenReqID, seenTrace string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenReqID = GetReqID(r.Context())
				seenTrace = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seenReqID)
			assert.Equal(t, seenReqID, seenTrace)
			assert.Equal(t, seenReqID, rec.Header().Get(RequestIDHeader))
			if tt.header != "" {
				assert.Equal(t, tt.header, seenReqID)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	defer infrastructure.SetClock(clock)()

	rl := NewRateLimiter(1, 2, testLogger(), "/api/health")
	h := rl.Handler(okHandler())

	call := func(path, addr string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("/api/jobs", "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("/api/jobs", "10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("/api/jobs", "10.0.0.1:1002"))

	// Other clients have their own bucket; exempt paths are never limited.
	assert.Equal(t, http.StatusOK, call("/api/jobs", "10.0.0.2:1000"))
	assert.Equal(t, http.StatusOK, call("/api/health", "10.0.0.1:1003"))

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, call("/api/jobs", "10.0.0.1:1004"))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1005"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, apperrors.TypeRateLimit, body["type"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_FromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(config.RateLimitConfig{Enabled: false, RPS: 10, Burst: 1}, nil))
	assert.Nil(t, FromConfig(config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 1}, nil))
	rl := FromConfig(config.RateLimitConfig{Enabled: true, RPS: 10, Burst: 1}, nil)
	require.NotNil(t, rl)

	// A nil limiter is a pass-through.
	var none *RateLimiter
	rec := httptest.NewRecorder()
	none.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	h = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", []string{"http://localhost:8080"}, "http://localhost:8080", http.MethodGet, "http://localhost:8080", http.StatusOK},
		{"foreign origin", []string{"http://localhost:8080"}, "http://evil.example", http.MethodGet, "", http.StatusOK},
		{"wildcard", []string{"*"}, "", http.MethodGet, "*", http.StatusOK},
		{"preflight", []string{"*"}, "http://a.example", http.MethodOptions, "http://a.example", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CORSFromConfig(config.SecurityConfig{AllowedOrigins: tt.origins}, testLogger())
			h := CORS(cfg)(okHandler())

			req := httptest.NewRequest(tt.method, "/api/jobs", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
			assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	h := DefaultSecureHeaders().Handler(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain HTTP gets no HSTS")

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestStructuredLoggerAndAudit(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := StructuredLogger(logger)(AuditLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/jobs/01abc")
		w.WriteHeader(http.StatusAccepted)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/tmy", nil))
	out := buf.String()
	assert.Contains(t, out, `"msg":"audit log"`)
	assert.Contains(t, out, `"job_id":"/api/jobs/01abc"`)
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"status":202`)

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.NotContains(t, buf.String(), "audit log")
}

func TestContentTypeValidator(t *testing.T) {
	eh := apperrors.NewErrorHandler(testLogger(), false)
	h := ContentTypeValidator(eh, "multipart/form-data")(okHandler())

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"multipart", http.MethodPost, "multipart/form-data; boundary=x", http.StatusOK},
		{"missing", http.MethodPost, "", http.StatusBadRequest},
		{"json", http.MethodPost, "application/json", http.StatusUnsupportedMediaType},
		{"get skipped", http.MethodGet, "", http.StatusOK},
		{"delete skipped", http.MethodDelete, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/tmy", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	qv := NewQueryParamValidator(testLogger(), apperrors.NewErrorHandler(testLogger(), false))

	tests := []struct {
		name    string
		query   string
		wantInt int
		wantOK  bool
	}{
		{"default", "", 50, true},
		{"value", "limit=10", 10, true},
		{"not a number", "limit=abc", 0, false},
		{"out of range", "limit=5000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			n, ok := qv.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?"+tt.query, nil), "limit", 1, 1000, 50)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantInt, n)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	v, ok := qv.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=done", nil), "status", []string{"pending", "completed"}, "")
	assert.False(t, ok)
	assert.Empty(t, v)
	body := decodeProblem(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])

	v, ok = qv.ValidateEnum(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil), "status", []string{"pending", "completed"}, "")
	assert.True(t, ok)
	assert.Equal(t, "completed", v)
}

func TestValidator(t *testing.T) {
	type form struct {
		File      string  `form:"file" validate:"required,filename"`
		Threshold float64 `form:"threshold_value" validate:"gte=0"`
		Column    string  `json:"threshold_column" validate:"omitempty,max=8"`
	}

	v := NewValidator()
	require.NoError(t, v.Struct(form{File: "a.csv", Threshold: 10}))

	err := v.Struct(form{File: "../etc/passwd", Threshold: -1, Column: "much_too_long"})
	require.Error(t, err)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	details, ok := apiErr.Details.(apperrors.ValidationErrors)
	require.True(t, ok)
	fields := map[string]string{}
	for _, e := range details.Errors {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "file must be a plain file name", fields["file"])
	assert.Equal(t, "threshold_value must be greater than or equal to 0", fields["threshold_value"])
	assert.Equal(t, "threshold_column must be at most 8", fields["threshold_column"])

	assert.NoError(t, v.Var("name", "report.pdf", "filename"))
	err = v.Var("name", "a/b.pdf", "filename")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestOTelMiddleware(t *testing.T) {
	m, err := NewOTelMiddleware(&infrastructure.OTelProviders{
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/{id}", routePattern(r))
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/42", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
