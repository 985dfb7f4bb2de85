package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pvinsight/internal/config"
	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/operations"
)

type statsFunc func() map[string]interface{}

func (f statsFunc) Stats() map[string]interface{} { return f() }

func setupRouter(t *testing.T) (http.Handler, *MockJobService) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.UploadsDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false

	service := &MockJobService{}
	service.On("Stats").Return(map[string]interface{}{"workers": 2, "active_jobs": 0}).Maybe()

	router := NewRouter(RouterOptions{
		Config: cfg,
		Jobs:   service,
		Hub: statsFunc(func() map[string]interface{} {
			return map[string]interface{}{"active_clients": 3}
		}),
		WebSocket: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		Logger: testLogger(),
	})
	return router, service
}

func TestRouter_Health(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, config.AppVersion, body["version"])
	assert.Equal(t, float64(3), body["websocket"].(map[string]interface{})["active_clients"])
	assert.Equal(t, float64(2), body["jobs"].(map[string]interface{})["workers"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_Tools(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "catalogue",
			path:           "/api/tools",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(len(operations.Tools())), body["count"])
			},
		},
		{
			name:           "one tool",
			path:           "/api/tools/tmy_compare",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(2), body["inputs"])
			},
		},
		{
			name:           "unknown tool",
			path:           "/api/tools/scraper",
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "TOOL_NOT_FOUND", body["error_code"])
			},
		},
		{
			name:           "schema",
			path:           "/api/schemas/tmy_analysis",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "TMY file analysis", body["title"])
				props, ok := body["properties"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, props, "stats")
				assert.NotContains(t, props, "Dataset")
			},
		},
		{
			name:           "schema of unknown tool",
			path:           "/api/schemas/scraper",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.validate != nil {
				tt.validate(t, decodeBody(t, rec))
			}
		})
	}
}

func TestRouter_Problems(t *testing.T) {
	router, _ := setupRouter(t)

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		assert.Equal(t, apperrors.TypeNotFound, decodeBody(t, rec)["type"])
	})

	t.Run("wrong content type on upload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tmy", nil)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestRouter_Submit(t *testing.T) {
	router, service := setupRouter(t)
	service.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		return req.Tool == operations.ToolHourly && req.Inputs[0].Path != ""
	})).Return(&operations.Job{ID: "run-9", Tool: operations.ToolHourly, Status: operations.JobStatusPending}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/hourly", map[string]string{"threshold_value": "500"},
		formFile{"file", "site.csv", hourlyCSV}))

	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/jobs/run-9", rec.Header().Get("Location"))
	service.AssertExpectations(t)
}

func TestRouter_WebSocketAndMetrics(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/hourly", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
}
