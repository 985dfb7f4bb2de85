package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
	"pvinsight/internal/meteo"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Enqueue(ctx context.Context, req operations.OperationRequest) (*operations.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockJobService) GetJob(id string) (*operations.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockJobService) CancelJob(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockJobService) DeleteJob(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockJobService) ListJobs(filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*operations.Job), args.Error(1)
}

func (m *MockJobService) Stats() map[string]interface{} {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]interface{})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupJobsHandler creates a handler with a mocked queue
func setupJobsHandler(t *testing.T, opts JobsHandlerOptions) (*JobsHandler, *MockJobService) {
	t.Helper()
	service := &MockJobService{}
	opts.Logger = testLogger()
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = apperrors.NewErrorHandler(opts.Logger, false)
	}
	return NewJobsHandler(service, opts), service
}

func setupJobsRouter(h *JobsHandler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/hourly", h.SubmitHourly)
		r.Post("/tmy", h.SubmitTMY)
		r.Post("/tmy/compare", h.SubmitCompare)
		r.Mount("/jobs", h.Routes())
	})
	return r
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

var hourlyCSV = []byte("PVSYST V7.4\ndate;E_Grid\n;kWh\n01/01/90 00:00;0\n")

func TestJobsHandler_SubmitHourly(t *testing.T) {
	defaults := production.Options{ThresholdValue: 100, NightDisconnection: true}

	tests := []struct {
		name           string
		fields         map[string]string
		files          []formFile
		setupMocks     func(*MockJobService)
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "comma decimals and zero capacity",
			fields: map[string]string{
				"threshold_value":     "1 250,5",
				"threshold_column":    "EArray",
				"night_disconnection": "false",
				"grid_capacity_kw":    "0",
			},
			files: []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks: func(s *MockJobService) {
				s.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
					return req.Tool == operations.ToolHourly &&
						req.ID != "" &&
						len(req.Inputs) == 1 &&
						req.Inputs[0].Name == "site.csv" &&
						req.Inputs[0].Checksum == operations.Checksum(hourlyCSV) &&
						req.Hourly.ThresholdValue == 1250.5 &&
						req.Hourly.ThresholdColumn == "EArray" &&
						!req.Hourly.NightDisconnection &&
						req.Hourly.GridCapacityKW == nil
				})).Return(&operations.Job{ID: "run-1", Tool: operations.ToolHourly, Status: operations.JobStatusPending}, nil)
			},
			expectedStatus: http.StatusAccepted,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "/api/jobs/run-1", rec.Header().Get("Location"))
				body := decodeBody(t, rec)
				assert.Equal(t, "run-1", body["id"])
				assert.Equal(t, "pending", body["status"])
			},
		},
		{
			name:   "defaults and positive capacity",
			fields: map[string]string{"grid_capacity_kw": "800,5"},
			files:  []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks: func(s *MockJobService) {
				s.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
					return req.Hourly.ThresholdValue == 100 &&
						req.Hourly.ThresholdColumn == production.DefaultThresholdColumn &&
						req.Hourly.NightDisconnection &&
						req.Hourly.GridCapacityKW != nil && *req.Hourly.GridCapacityKW == 800.5
				})).Return(&operations.Job{ID: "run-2", Tool: operations.ToolHourly, Status: operations.JobStatusPending}, nil)
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing file",
			fields:         map[string]string{"threshold_value": "10"},
			setupMocks:     func(s *MockJobService) {},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				body := decodeBody(t, rec)
				assert.Equal(t, apperrors.TypeValidation, body["type"])
			},
		},
		{
			name:           "invalid threshold",
			fields:         map[string]string{"threshold_value": "abc"},
			files:          []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks:     func(s *MockJobService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid night flag",
			fields:         map[string]string{"night_disconnection": "maybe"},
			files:          []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks:     func(s *MockJobService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty file",
			files:          []formFile{{"file", "site.csv", nil}},
			setupMocks:     func(s *MockJobService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "queue full",
			files: []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks: func(s *MockJobService) {
				s.On("Enqueue", mock.Anything, mock.Anything).Return(nil, operations.ErrQueueFull)
			},
			expectedStatus: http.StatusServiceUnavailable,
			validate: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decodeBody(t, rec)
				assert.Equal(t, "QUEUE_FULL", body["error_code"])
				assert.Contains(t, body, "trace_id")
			},
		},
		{
			name:  "unknown tool rejected by the queue",
			files: []formFile{{"file", "site.csv", hourlyCSV}},
			setupMocks: func(s *MockJobService) {
				s.On("Enqueue", mock.Anything, mock.Anything).
					Return(nil, operations.NewValidationError("", "unknown tool"))
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, service := setupJobsHandler(t, JobsHandlerOptions{Defaults: defaults})
			tt.setupMocks(service)

			rec := httptest.NewRecorder()
			setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/hourly", tt.fields, tt.files...))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.validate != nil {
				tt.validate(t, rec)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestJobsHandler_SubmitTMY(t *testing.T) {
	h, service := setupJobsHandler(t, JobsHandlerOptions{})
	data := []byte("Year,Month,Day,Hour,GHI\n")
	service.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		return req.Tool == operations.ToolTMY && req.Inputs[0].Name == "meteo.csv" && req.Hourly == nil
	})).Return(&operations.Job{ID: "tmy-1", Tool: operations.ToolTMY, Status: operations.JobStatusPending}, nil)

	rec := httptest.NewRecorder()
	setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy", nil, formFile{"file", "meteo.csv", data}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	service.AssertExpectations(t)
}

func TestJobsHandler_SubmitCompare(t *testing.T) {
	a := []byte("a")
	b := []byte("b")

	t.Run("both files", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
			return req.Tool == operations.ToolTMYCompare &&
				len(req.Inputs) == 2 &&
				req.Inputs[0].Name == "a.csv" &&
				req.Inputs[1].Name == "b.csv"
		})).Return(&operations.Job{ID: "cmp-1", Tool: operations.ToolTMYCompare}, nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy/compare", nil,
			formFile{"file_a", "a.csv", a}, formFile{"file_b", "b.csv", b}))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("missing second file", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy/compare", nil,
			formFile{"file_a", "a.csv", a}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file_b")
		service.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("rejected second file removes the first upload", func(t *testing.T) {
		dir := t.TempDir()
		h, service := setupJobsHandler(t, JobsHandlerOptions{UploadsDir: dir})

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy/compare", nil,
			formFile{"file_a", "a.csv", a}, formFile{"file_b", "b.csv", nil}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("queue full removes uploads", func(t *testing.T) {
		dir := t.TempDir()
		h, service := setupJobsHandler(t, JobsHandlerOptions{UploadsDir: dir})
		service.On("Enqueue", mock.Anything, mock.Anything).Return(nil, operations.ErrQueueFull)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy/compare", nil,
			formFile{"file_a", "a.csv", a}, formFile{"file_b", "b.csv", b}))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestJobsHandler_UploadLimits(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{MaxUploadBytes: 64})

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy", nil,
			formFile{"file", "big.csv", bytes.Repeat([]byte("x"), 1024)}))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		service.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("uploads kept on disk", func(t *testing.T) {
		dir := t.TempDir()
		h, service := setupJobsHandler(t, JobsHandlerOptions{UploadsDir: dir})

		var got operations.OperationRequest
		service.On("Enqueue", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { got = args.Get(1).(operations.OperationRequest) }).
			Return(&operations.Job{ID: "run-3"}, nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy", nil,
			formFile{"file", "meteo.csv", []byte("content")}))

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, got.Inputs, 1)
		assert.Equal(t, filepath.Join(dir, got.ID, "file_meteo.csv"), got.Inputs[0].Path)
		data, err := os.ReadFile(got.Inputs[0].Path)
		require.NoError(t, err)
		assert.Equal(t, "content", string(data))
	})

	t.Run("windows client path is reduced to its base name", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("Enqueue", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
			return req.Inputs[0].Name == "meteo.csv"
		})).Return(&operations.Job{ID: "run-4"}, nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, multipartRequest(t, "/api/tmy", nil,
			formFile{"file", `C:\data\meteo.csv`, []byte("x")}))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		service.AssertExpectations(t)
	})
}

func TestJobsHandler_ListJobs(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*MockJobService)
		expectedStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setupMocks: func(s *MockJobService) {
				s.On("ListJobs", operations.JobFilter{Limit: 50}).
					Return([]*operations.Job{{ID: "a"}, {ID: "b"}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filters",
			query: "?limit=5&status=completed&tool=tmy_compare",
			setupMocks: func(s *MockJobService) {
				s.On("ListJobs", operations.JobFilter{
					Limit:  5,
					Status: operations.JobStatusCompleted,
					Tool:   operations.ToolTMYCompare,
				}).Return([]*operations.Job{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{name: "limit not a number", query: "?limit=ten", setupMocks: func(*MockJobService) {}, expectedStatus: http.StatusBadRequest},
		{name: "limit out of range", query: "?limit=0", setupMocks: func(*MockJobService) {}, expectedStatus: http.StatusBadRequest},
		{name: "unknown status", query: "?status=done", setupMocks: func(*MockJobService) {}, expectedStatus: http.StatusBadRequest},
		{name: "unknown tool", query: "?tool=scraper", setupMocks: func(*MockJobService) {}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, service := setupJobsHandler(t, JobsHandlerOptions{})
			tt.setupMocks(service)

			rec := httptest.NewRecorder()
			setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			service.AssertExpectations(t)
		})
	}

	t.Run("count matches jobs", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("ListJobs", mock.Anything).Return([]*operations.Job{{ID: "a"}, {ID: "b"}}, nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

		body := decodeBody(t, rec)
		assert.Equal(t, float64(2), body["count"])
		assert.Len(t, body["jobs"], 2)
	})
}

func TestJobsHandler_GetAndDelete(t *testing.T) {
	notFound := fmt.Errorf("job missing: %w", operations.ErrJobNotFound)

	t.Run("get", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("GetJob", "run-1").Return(&operations.Job{
			ID: "run-1", Tool: operations.ToolTMY, Status: operations.JobStatusRunning, Progress: 40,
		}, nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/run-1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "running", body["status"])
		assert.Equal(t, float64(40), body["progress"])
	})

	t.Run("get unknown", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("GetJob", "nope").Return(nil, notFound)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "JOB_NOT_FOUND", decodeBody(t, rec)["error_code"])
	})

	t.Run("delete", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("DeleteJob", "run-1").Return(nil)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/run-1", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("delete unknown", func(t *testing.T) {
		h, service := setupJobsHandler(t, JobsHandlerOptions{})
		service.On("DeleteJob", "nope").Return(notFound)

		rec := httptest.NewRecorder()
		setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestJobsHandler_GetResult(t *testing.T) {
	tests := []struct {
		name           string
		job            *operations.Job
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "still running",
			job:            &operations.Job{ID: "r", Status: operations.JobStatusRunning},
			expectedStatus: http.StatusConflict,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "JOB_NOT_FINISHED", body["error_code"])
			},
		},
		{
			name:           "failed",
			job:            &operations.Job{ID: "r", Status: operations.JobStatusFailed, Error: "bad file"},
			expectedStatus: http.StatusConflict,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "JOB_NOT_COMPLETED", body["error_code"])
				assert.Equal(t, "bad file", body["details"])
			},
		},
		{
			name: "completed",
			job: &operations.Job{
				ID:     "r",
				Status: operations.JobStatusCompleted,
				Response: &operations.OperationResponse{
					ID:     "r",
					Tool:   operations.ToolTMY,
					Result: &meteo.Analysis{Reader: "pvsyst", SourceName: "meteo.csv", TimeStepMinutes: 60},
				},
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "pvsyst", body["reader"])
				assert.Equal(t, "meteo.csv", body["source_name"])
				assert.Equal(t, float64(60), body["time_step_minutes"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, service := setupJobsHandler(t, JobsHandlerOptions{})
			service.On("GetJob", "r").Return(tt.job, nil)

			rec := httptest.NewRecorder()
			setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/r/result", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.validate != nil {
				tt.validate(t, decodeBody(t, rec))
			}
		})
	}
}

func TestJobsHandler_GetFile(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "TMY_Report.xlsx")
	require.NoError(t, os.WriteFile(report, []byte("xlsx bytes"), 0o644))

	job := &operations.Job{
		ID:     "r",
		Status: operations.JobStatusCompleted,
		Response: &operations.OperationResponse{
			Outputs: exporter.Outputs{Files: []exporter.OutputFile{
				{Kind: exporter.KindExcel, Name: "TMY_Report.xlsx", Path: report},
				{Kind: exporter.KindPDF, Name: "gone.pdf", Path: filepath.Join(dir, "gone.pdf")},
			}},
		},
	}

	tests := []struct {
		name           string
		file           string
		expectedStatus int
	}{
		{name: "served", file: "TMY_Report.xlsx", expectedStatus: http.StatusOK},
		{name: "not an output", file: "other.xlsx", expectedStatus: http.StatusNotFound},
		{name: "deleted from disk", file: "gone.pdf", expectedStatus: http.StatusNotFound},
		{name: "traversal", file: "a..b", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, service := setupJobsHandler(t, JobsHandlerOptions{})
			service.On("GetJob", "r").Return(job, nil).Maybe()

			rec := httptest.NewRecorder()
			setupJobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/r/files/"+tt.file, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "xlsx bytes", rec.Body.String())
				assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment"))
			}
		})
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1250.5", 1250.5, false},
		{"1 250,5", 1250.5, false},
		{"1\u00a0250,5", 1250.5, false},
		{"-3", -3, false},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDecimal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
