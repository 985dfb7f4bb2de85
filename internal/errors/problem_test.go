package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusUnprocessableEntity, TypeParsing, "Unreadable Input File",
		"Missing units row after header line.", "/api/hourly").
		WithExtension("trace_id", "t-1")

	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, TypeParsing, got["type"])
	assert.Equal(t, float64(422), got["status"])
	assert.Equal(t, "Missing units row after header line.", got["detail"])
	assert.Equal(t, "/api/hourly", got["instance"])
	assert.Equal(t, "t-1", got["trace_id"])
}

func TestProblemDetails_ExtensionsCannotOverrideStandardMembers(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "").
		WithExtension("status", 200)

	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, float64(404), got["status"])
	assert.NotContains(t, got, "detail")
}

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProblem(rec, NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", "no file", "/api/tmy"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"detail":"no file"`)
}

func TestProblemDetails_Extension(t *testing.T) {
	pd := &ProblemDetails{}
	pd.WithExtension("k", "v")

	v, ok := pd.Extension("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = pd.Extension("missing")
	assert.False(t, ok)
}
