package production

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pvinsight/internal/infrastructure"
	"pvinsight/internal/readers"
)

// Pipeline parses Hourly Results exports and runs the registered analyses.
type Pipeline struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
}

// NewPipeline creates a pipeline over the default registry. logger and
// metrics may be nil.
func NewPipeline(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Pipeline {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Pipeline{
		registry: DefaultRegistry(),
		logger:   infrastructure.WithComponent(logger, "production"),
		metrics:  metrics,
	}
}

// WithRegistry replaces the analyses the pipeline runs.
func (p *Pipeline) WithRegistry(r *Registry) *Pipeline {
	p.registry = r
	return p
}

// Analyze parses source and runs every analysis. Parsing errors are
// returned as is; missing analysis columns are not errors.
func (p *Pipeline) Analyze(ctx context.Context, source []byte, sourceName string, opts Options) (*Context, error) {
	ctx, span := otel.Tracer(infrastructure.ServiceName).Start(ctx, "production.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("source", sourceName))

	start := time.Now()
	hourly, err := readers.ReadHourly(source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	p.metrics.RecordRows(ctx, "pvsyst_hourly", hourly.Frame.Len())

	c := NewContext(sourceName, hourly, opts)
	if err := p.registry.RunAll(ctx, c); err != nil {
		span.RecordError(err)
		return nil, err
	}

	available := c.Results.Available()
	span.SetAttributes(
		attribute.Int("rows", c.Frame.Len()),
		attribute.StringSlice("available_analyses", available),
	)
	p.logger.InfoContext(ctx, "Hourly analyses completed",
		slog.String("source", sourceName),
		slog.Int("rows", c.Frame.Len()),
		slog.Any("available", available),
		slog.Duration("duration", time.Since(start)))

	return c, nil
}

// AnalyzeHourly parses an Hourly Results export and runs all analyses with
// the default pipeline.
func AnalyzeHourly(ctx context.Context, source []byte, sourceName string, opts Options) (*Context, error) {
	return NewPipeline(nil, nil).Analyze(ctx, source, sourceName, opts)
}
