package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/miyamo2/qilin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
	"pvinsight/internal/meteo"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	args := m.Called(ctx, req)
	var resp *operations.OperationResponse
	if r := args.Get(0); r != nil {
		resp = r.(*operations.OperationResponse)
	}
	return resp, args.Error(1)
}

// fakeToolContext implements the parts of qilin.ToolContext the handlers use.
type fakeToolContext struct {
	qilin.ToolContext
	name string
	args []byte
	out  []byte
}

func (c *fakeToolContext) Context() context.Context { return context.Background() }
func (c *fakeToolContext) ToolName() string         { return c.name }

func (c *fakeToolContext) Bind(i any) error {
	if len(c.args) == 0 {
		return nil
	}
	return json.Unmarshal(c.args, i)
}

func (c *fakeToolContext) JSON(i any) error {
	b, err := json.Marshal(i)
	c.out = b
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tmyResponse(id string) *operations.OperationResponse {
	return &operations.OperationResponse{
		ID:     id,
		Tool:   operations.ToolTMY,
		Status: operations.OperationStatusCompleted,
		Outputs: exporter.Outputs{Files: []exporter.OutputFile{
			{Kind: exporter.KindExcel, Name: "tmy.xlsx", Path: "/out/tmy.xlsx"},
		}},
		Result: &meteo.Analysis{Reader: "pvsyst", SourceName: "tmy.csv", TimeStepMinutes: 60},
	}
}

func setupServer(t *testing.T, roots ...string) (*Server, *MockExecutor) {
	t.Helper()
	exec := &MockExecutor{}
	s, err := NewServer(exec, Options{
		Version:      "0.1.0",
		AllowedRoots: roots,
		Defaults:     production.Options{ThresholdValue: 300, NightDisconnection: true},
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	return s, exec
}

func TestNewServer_NilExecutor(t *testing.T) {
	_, err := NewServer(nil, Options{})
	assert.Error(t, err)
}

func TestServer_Resolve(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "site", "a.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(inside), 0o755))
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	restricted, _ := setupServer(t, root)
	open, _ := setupServer(t)

	tests := []struct {
		name    string
		server  *Server
		path    string
		wantErr bool
	}{
		{"inside root", restricted, inside, false},
		{"root itself", restricted, root, false},
		{"outside root", restricted, filepath.Join(os.TempDir(), "elsewhere.csv"), true},
		{"traversal", restricted, filepath.Join(root, "..", "escape.csv"), true},
		{"empty", restricted, "  ", true},
		{"unrestricted", open, filepath.Join(os.TempDir(), "elsewhere.csv"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.server.resolve(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
		})
	}
}

func TestServer_Hourly(t *testing.T) {
	dir := t.TempDir()
	s, exec := setupServer(t, dir)
	file := filepath.Join(dir, "hourly.csv")

	exec.On("Execute", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
		h := req.Hourly
		return req.Tool == operations.ToolHourly &&
			filepath.Base(req.Inputs[0].Path) == "hourly.csv" &&
			h != nil && h.ThresholdValue == 300 && h.ThresholdColumn == "E_Grid" &&
			!h.NightDisconnection && h.GridCapacityKW != nil && *h.GridCapacityKW == 800
	})).Return(tmyResponse("run-1"), nil)

	night := false
	capacity := 800.0
	summary, err := s.Hourly(context.Background(), HourlyRequest{
		File:               file,
		NightDisconnection: &night,
		GridCapacityKW:     &capacity,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, operations.OperationStatusCompleted, summary.Status)
	assert.Len(t, summary.Outputs, 1)
	exec.AssertExpectations(t)
}

func TestServer_Compare(t *testing.T) {
	dir := t.TempDir()
	s, exec := setupServer(t, dir)

	t.Run("second file outside roots", func(t *testing.T) {
		_, err := s.Compare(context.Background(), CompareRequest{
			FileA: filepath.Join(dir, "a.csv"),
			FileB: "/etc/passwd",
		})
		require.Error(t, err)
		exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("executor error", func(t *testing.T) {
		exec.On("Execute", mock.Anything, mock.MatchedBy(func(req operations.OperationRequest) bool {
			return req.Tool == operations.ToolTMYCompare && len(req.Inputs) == 2
		})).Return(&operations.OperationResponse{Status: operations.OperationStatusFailed}, errors.New("no common year")).Once()

		_, err := s.Compare(context.Background(), CompareRequest{
			FileA: filepath.Join(dir, "a.csv"),
			FileB: filepath.Join(dir, "b.csv"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no common year")
	})
}

func TestServer_Handlers(t *testing.T) {
	dir := t.TempDir()
	s, exec := setupServer(t, dir)
	exec.On("Execute", mock.Anything, mock.Anything).Return(tmyResponse("run-2"), nil)

	t.Run("tmy_analysis", func(t *testing.T) {
		args, err := json.Marshal(TMYRequest{File: filepath.Join(dir, "tmy.csv")})
		require.NoError(t, err)
		c := &fakeToolContext{name: operations.ToolTMY, args: args}

		require.NoError(t, s.logCall(s.handleTMY)(c))

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(c.out, &got))
		assert.Equal(t, "run-2", got["run_id"])
		result := got["result"].(map[string]interface{})
		assert.Equal(t, "pvsyst", result["reader"])
	})

	t.Run("missing file argument", func(t *testing.T) {
		c := &fakeToolContext{name: operations.ToolTMY, args: []byte(`{}`)}
		assert.Error(t, s.handleTMY(c))
		assert.Nil(t, c.out)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		c := &fakeToolContext{name: operations.ToolHourly, args: []byte(`{"file": 3}`)}
		assert.Error(t, s.handleHourly(c))
	})

	t.Run("list_tools", func(t *testing.T) {
		c := &fakeToolContext{name: ToolListTools}
		require.NoError(t, s.handleListTools(c))

		var got struct {
			Tools []operations.ToolInfo `json:"tools"`
			Count int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(c.out, &got))
		assert.Equal(t, len(operations.Tools()), got.Count)
		ids := make([]string, 0, len(got.Tools))
		for _, tool := range got.Tools {
			ids = append(ids, tool.ID)
		}
		assert.Contains(t, ids, operations.ToolTMYCompare)
	})
}
