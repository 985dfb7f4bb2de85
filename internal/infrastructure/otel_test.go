package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func testOTelConfig(t *testing.T) *OTelConfig {
	t.Helper()
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
		TraceWriter:    io.Discard,
		Registry:       promclient.NewRegistry(),
	}
}

func TestInitializeOTel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(testOTelConfig(t), logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_Exporters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		traces  string
		metrics string
		wantErr bool
	}{
		{"no exporters", "none", "none", false},
		{"stdout traces only", "stdout", "none", false},
		{"unknown trace exporter", "jaeger", "none", true},
		{"unknown metric exporter", "none", "statsd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testOTelConfig(t)
			cfg.TraceExporter = tt.traces
			cfg.MetricExporter = tt.metrics

			providers, err := InitializeOTel(cfg, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.NotNil(t, providers.Metrics)
			if tt.metrics == "none" {
				assert.Nil(t, providers.PrometheusHTTP)
			}
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestTraceIDFromContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := InitializeOTel(testOTelConfig(t), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	t.Run("span context wins", func(t *testing.T) {
		ctx, span := providers.Tracer.Start(context.Background(), "hourly.parse")
		defer span.End()

		traceID := TraceIDFromContext(ctx)
		assert.Len(t, traceID, 32)
		assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	})

	t.Run("falls back to request trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "req-123")
		assert.Equal(t, "req-123", TraceIDFromContext(ctx))
	})
}

func TestSpanHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := testOTelConfig(t)
	cfg.TraceWriter = &buf
	cfg.MetricExporter = "none"

	providers, err := InitializeOTel(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "tmy.compare")
	AddSpanEvent(ctx, "aligned", attribute.String("mode", "climatology"))
	RecordError(ctx, errors.New("no common timestamps"))
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "tmy.compare")
	assert.Contains(t, out, "aligned")
	assert.Contains(t, out, "no common timestamps")

	// no span in context is a no-op
	AddSpanEvent(context.Background(), "ignored")
	RecordError(context.Background(), errors.New("ignored"))
}

func TestBusinessMetricsEndpoint(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()
	m := providers.Metrics
	m.RecordRun(ctx, "tmy_analysis", 1500*time.Millisecond, nil)
	m.RecordRun(ctx, "tmy_compare", time.Second, errors.New("boom"))
	m.RecordStep(ctx, "tmy_analysis", "parse", 200*time.Millisecond, true)
	m.RecordRows(ctx, "pvsyst_tmy", 8760)
	m.RecordActiveJob(ctx, "tmy_analysis", 1)
	m.RecordReport(ctx, "pdf")
	m.RecordAlert(ctx)
	m.RecordEvent(ctx, "pvinsight.runs", true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pvinsight_runs_total")
	assert.Contains(t, body, "pvinsight_rows_parsed_total")
	assert.Contains(t, body, "pvinsight_comparison_alerts_total")
	assert.Contains(t, body, `tool="tmy_compare"`)
}

func TestBusinessMetrics_NilSafe(t *testing.T) {
	var m *BusinessMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRun(ctx, "x", time.Second, nil)
		m.RecordStep(ctx, "x", "y", time.Second, true)
		m.RecordRows(ctx, "x", 1)
		m.RecordActiveJob(ctx, "x", 1)
		m.RecordReport(ctx, "pdf")
		m.RecordAlert(ctx)
		m.RecordEvent(ctx, "t", false)
	})
}

func TestDefaultOTelConfig(t *testing.T) {
	t.Setenv("PVI_ENVIRONMENT", "")
	t.Setenv("PVI_TRACE_EXPORTER", "")

	cfg := DefaultOTelConfig()
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.Equal(t, "prometheus", cfg.MetricExporter)

	t.Setenv("PVI_TRACE_EXPORTER", "stdout")
	assert.Equal(t, "stdout", DefaultOTelConfig().TraceExporter)
}
