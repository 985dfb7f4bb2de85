package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(http.StatusNotFound, "JOB_NOT_FOUND", "job not found")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "JOB_NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "job not found", err.Error())
	assert.Nil(t, err.Details)
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"invalid request", InvalidRequestWithError(errors.New("bad multipart")), http.StatusBadRequest, "INVALID_REQUEST"},
		{"validation", ErrValidation("threshold_value", "must be a number"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", NotFoundError("job"), http.StatusNotFound, "NOT_FOUND"},
		{"filesystem", FileSystemError("upload", errors.New("eacces")), http.StatusInternalServerError, "FILESYSTEM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotNil(t, tt.err.Details)
		})
	}
}

func TestFromValidator(t *testing.T) {
	type request struct {
		Tool      string  `validate:"required,oneof=tmy_analysis tmy_compare hourly_results_analysis"`
		Threshold float64 `validate:"gte=0"`
	}

	err := validator.New().Struct(request{Tool: "bogus", Threshold: -1})
	require.Error(t, err)

	apiErr := FromValidator(err)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	details, ok := apiErr.Details.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, details.Errors, 2)
	assert.Equal(t, "Tool", details.Errors[0].Field)
	assert.Contains(t, details.Errors[0].Message, "oneof=")
	assert.Equal(t, "Threshold", details.Errors[1].Field)

	plain := FromValidator(errors.New("eof"))
	assert.Equal(t, "INVALID_REQUEST", plain.ErrorCode)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrQueueFull)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "QUEUE_FULL", body.Error.ErrorCode)
}
