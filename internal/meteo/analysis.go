package meteo

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pvinsight/internal/infrastructure"
	"pvinsight/internal/readers"
	"pvinsight/internal/timeseries"
	"pvinsight/internal/units"
)

// Options control TMY reading and energy integration.
type Options struct {
	TMY        readers.TMYOptions
	EnergyUnit string
	// GHIBinWidth is the class width of the GHI distribution in W/m².
	GHIBinWidth int
}

// DefaultOptions returns kW/m² irradiance, kWh/m² energy and hourly
// resampling.
func DefaultOptions() Options {
	return Options{
		TMY:         readers.DefaultTMYOptions(),
		EnergyUnit:  units.KiloWattHourPerM2,
		GHIBinWidth: DefaultGHIBinWidth,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TMY.TargetIrradianceUnit == "" {
		o.TMY = d.TMY
	}
	if o.EnergyUnit == "" {
		o.EnergyUnit = d.EnergyUnit
	}
	if o.GHIBinWidth <= 0 {
		o.GHIBinWidth = d.GHIBinWidth
	}
	return o
}

// Analysis is the outcome of AnalyzeTMY.
type Analysis struct {
	Dataset         *readers.TMYDataset `json:"-"`
	Reader          string              `json:"reader"`
	SourceName      string              `json:"source_name"`
	TimeStepMinutes int                 `json:"time_step_minutes"`
	Quality         timeseries.Quality  `json:"quality"`
	Units           map[string]string   `json:"units"`
	HeaderInfo      map[string]string   `json:"header_info"`
	Stats           []Stat              `json:"stats"`
	PrettyStats     []Stat              `json:"stats_pretty"`
	GHIDistribution []GHIClass          `json:"ghi_distribution"`
	Energy          Energy              `json:"energy"`
	Warnings        []string            `json:"warnings"`
}

// AnalyzeTMY reads a TMY file with the first reader that accepts it and
// computes statistics, annual irradiation and the GHI distribution.
func AnalyzeTMY(ctx context.Context, data []byte, sourceName string, opts Options) (*Analysis, error) {
	_, span := otel.Tracer(infrastructure.ServiceName).Start(ctx, "meteo.AnalyzeTMY")
	defer span.End()

	opts = opts.withDefaults()

	ds, err := readers.ReadTMY(data, sourceName, opts.TMY)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("reader", ds.Reader),
		attribute.Int("rows", ds.Frame.Len()),
	)

	return analyzeDataset(ds, opts)
}

func analyzeDataset(ds *readers.TMYDataset, opts Options) (*Analysis, error) {
	stats := BasicStats(ds.Frame)

	energy, err := AnnualIrradiation(ds.Frame, ds.Units, ds.TimeStepMinutes, opts.EnergyUnit)
	if err != nil {
		return nil, err
	}

	// class bounds are meaningful in W/m² only
	conv, err := units.ConvertIrradiance(ds.Frame, ds.Units, units.WattPerM2)
	if err != nil {
		return nil, err
	}

	warnings := append([]string(nil), ds.Warnings...)
	warnings = append(warnings, energy.Warnings...)
	warnings = append(warnings, conv.Warnings...)

	return &Analysis{
		Dataset:         ds,
		Reader:          ds.Reader,
		SourceName:      ds.SourceName,
		TimeStepMinutes: ds.TimeStepMinutes,
		Quality:         ds.Quality,
		Units:           ds.Units,
		HeaderInfo:      ds.HeaderInfo,
		Stats:           stats,
		PrettyStats:     PrettyStats(stats, ds.Units),
		GHIDistribution: GHIDistribution(conv.Frame, opts.GHIBinWidth),
		Energy:          energy,
		Warnings:        warnings,
	}, nil
}
