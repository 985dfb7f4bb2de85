package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvinsight/internal/config"
	"pvinsight/internal/exporter"
	"pvinsight/internal/notify"
	"pvinsight/internal/operations"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.PDF.Enabled = false
	cfg.Logging.Level = "error"
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func tmyFile() []byte {
	var b strings.Builder
	b.WriteString("#Meteo data;Test site\n#Time Step;h\n")
	b.WriteString("YEAR;MONTH;DAY;HOUR;GHI;DNI;DHI;Tamb;WindVel\n")
	b.WriteString(";;;;W/m2;W/m2;W/m2;deg_C;m/s\n")
	for h := 0; h < 6; h++ {
		fmt.Fprintf(&b, "2001;1;1;%d;%d;%d;%d;%d;2\n", h, h*100, h*150, h*40, 10+h)
	}
	return []byte(b.String())
}

func TestNew_ServerMode(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(Options{Config: cfg, Console: io.Discard, Server: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	require.NotNil(t, a.Router)
	require.NotNil(t, a.Server)
	require.NotNil(t, a.JobQueue)
	require.NotNil(t, a.WebSocketHub)
	assert.IsType(t, notify.NopPublisher{}, a.Publisher)

	for _, dir := range []string{a.Paths.OutputsDir, a.Paths.UploadsDir, a.Paths.LogsDir} {
		assert.DirExists(t, dir)
	}
	assert.Equal(t, fmt.Sprintf(":%d", cfg.Server.Port), a.Server.Addr)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "pvinsight_websocket_connections_active")
}

func TestNew_CLIMode(t *testing.T) {
	a, err := New(Options{Config: testConfig(t), Console: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	assert.Nil(t, a.Router)
	assert.Nil(t, a.JobQueue)
	assert.Nil(t, a.WebSocketHub)
	assert.Error(t, a.Start(context.Background()))
}

func TestApplication_ExecuteTMY(t *testing.T) {
	a, err := New(Options{Config: testConfig(t), Console: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	resp, err := a.Execute(context.Background(), operations.OperationRequest{
		Tool:   operations.ToolTMY,
		Inputs: []operations.Input{{Name: "lyon.csv", Data: tmyFile()}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	runLog, ok := resp.Outputs.Path(exporter.KindLog)
	require.True(t, ok)
	assert.FileExists(t, runLog)
	assert.True(t, strings.HasPrefix(runLog, filepath.Join(a.Paths.OutputsDir, "latest", exporter.ToolTMY)))
	doc, ok := resp.Outputs.Path(exporter.KindJSON)
	require.True(t, ok)
	assert.FileExists(t, doc)

	// workbooks are only written for hourly results
	_, hasExcel := resp.Outputs.Path(exporter.KindExcel)
	assert.False(t, hasExcel)
	_, hasPDF := resp.Outputs.Path(exporter.KindPDF)
	assert.False(t, hasPDF)
}

func TestApplication_StartupHealthCheck(t *testing.T) {
	a, err := New(Options{Config: testConfig(t), Console: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	assert.NoError(t, a.performStartupHealthCheck(context.Background()))

	a.Config.PDF.Enabled = true
	a.Config.PDF.ChromePath = filepath.Join(t.TempDir(), "no-chrome")
	err = a.performStartupHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chrome not found")

	require.NoError(t, os.RemoveAll(a.Paths.UploadsDir))
	err = a.performStartupHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Uploads directory not writable")
}

func TestBrowserMethods(t *testing.T) {
	tests := []struct {
		goos  string
		first string
	}{
		{"windows", "rundll32"},
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			methods := browserMethods(tt.goos, "http://localhost:8080")
			require.NotEmpty(t, methods)
			assert.Equal(t, tt.first, methods[0].cmd)
			assert.Contains(t, methods[0].args, "http://localhost:8080")
		})
	}
}
