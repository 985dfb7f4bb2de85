package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"pvinsight/internal/config"
)

const (
	ServiceName = "pvinsight"
	MeterName   = "pvinsight"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout" or "none"
	MetricExporter string // "prometheus" or "none"
	SampleRatio    float64
	// TraceWriter receives stdout spans; nil means os.Stderr.
	TraceWriter io.Writer
	// Registry replaces the default Prometheus registry when set.
	Registry *promclient.Registry
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Metrics        *BusinessMetrics
	Logger         *slog.Logger
}

// DefaultOTelConfig returns the configuration used by the server. Spans are
// only exported when PVI_TRACE_EXPORTER=stdout.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("PVI_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	traces := os.Getenv("PVI_TRACE_EXPORTER")
	if traces == "" {
		traces = "none"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		TraceExporter:  traces,
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
	}
}

// InitializeOTel sets up tracing and metrics and registers them globally.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("traces", cfg.TraceExporter),
		slog.String("metrics", cfg.MetricExporter))

	return providers, nil
}

func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", fmt.Sprintf("%s-%d", hostname, os.Getpid())),
	), nil
}

func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.TraceExporter {
	case "none", "":
		providers.Tracer = otel.Tracer(MeterName)
		return nil
	case "stdout":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	w := cfg.TraceWriter
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.DebugContext(ctx, "Tracing initialized", slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "none", "":
		providers.Meter = otel.Meter(MeterName)
	case "prometheus":
		var opts []prometheus.Option
		providers.PrometheusHTTP = promhttp.Handler()
		if cfg.Registry != nil {
			opts = append(opts, prometheus.WithRegisterer(cfg.Registry))
			providers.PrometheusHTTP = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
		}
		exporter, err := prometheus.New(opts...)
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	metrics, err := CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	providers.Metrics = metrics

	providers.Logger.DebugContext(ctx, "Metrics initialized", slog.String("exporter", cfg.MetricExporter))
	return nil
}

// BusinessMetrics are the PVInsight instruments.
type BusinessMetrics struct {
	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	StepDuration     metric.Float64Histogram
	RowsParsed       metric.Int64Counter
	ActiveJobs       metric.Int64UpDownCounter
	ComparisonAlerts metric.Int64Counter
	ReportsWritten   metric.Int64Counter
	EventsPublished  metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		m   BusinessMetrics
		err error
	)

	if m.RunsTotal, err = meter.Int64Counter("pvinsight_runs_total",
		metric.WithDescription("Analysis runs by tool and status")); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram("pvinsight_run_duration_seconds",
		metric.WithDescription("Analysis run duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.StepDuration, err = meter.Float64Histogram("pvinsight_step_duration_seconds",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.RowsParsed, err = meter.Int64Counter("pvinsight_rows_parsed_total",
		metric.WithDescription("Data rows parsed from input files")); err != nil {
		return nil, err
	}
	if m.ActiveJobs, err = meter.Int64UpDownCounter("pvinsight_active_jobs",
		metric.WithDescription("Jobs currently executing")); err != nil {
		return nil, err
	}
	if m.ComparisonAlerts, err = meter.Int64Counter("pvinsight_comparison_alerts_total",
		metric.WithDescription("TMY comparisons that raised a discrepancy alert")); err != nil {
		return nil, err
	}
	if m.ReportsWritten, err = meter.Int64Counter("pvinsight_reports_written_total",
		metric.WithDescription("Report files written by kind")); err != nil {
		return nil, err
	}
	if m.EventsPublished, err = meter.Int64Counter("pvinsight_events_published_total",
		metric.WithDescription("Run events published to Kafka")); err != nil {
		return nil, err
	}

	return &m, nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// TraceIDFromContext returns the OpenTelemetry trace ID, falling back to the
// request trace ID stored by the RequestID middleware.
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return GetTraceID(ctx)
}

// AddSpanEvent adds an event to the current span
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordRun records a finished analysis run.
func (m *BusinessMetrics) RecordRun(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStep records the duration of one pipeline step.
func (m *BusinessMetrics) RecordStep(ctx context.Context, tool, step string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("step", step),
		attribute.Bool("success", success),
	))
}

// RecordRows counts parsed input rows.
func (m *BusinessMetrics) RecordRows(ctx context.Context, reader string, rows int) {
	if m == nil {
		return
	}
	m.RowsParsed.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("reader", reader)))
}

// RecordActiveJob moves the active job gauge by delta.
func (m *BusinessMetrics) RecordActiveJob(ctx context.Context, tool string, delta int64) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, delta, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordReport counts a written report file.
func (m *BusinessMetrics) RecordReport(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ReportsWritten.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAlert counts a comparison alert.
func (m *BusinessMetrics) RecordAlert(ctx context.Context) {
	if m == nil {
		return
	}
	m.ComparisonAlerts.Add(ctx, 1)
}

// RecordEvent counts a published event.
func (m *BusinessMetrics) RecordEvent(ctx context.Context, topic string, success bool) {
	if m == nil {
		return
	}
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Bool("success", success),
	))
}
