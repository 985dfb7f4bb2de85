package meteo

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/readers"
	"pvinsight/internal/timeseries"
)

// CompareVariables are the variables aligned and compared, in order.
var CompareVariables = []string{"ghi", "dni", "dhi", "temp", "wind_speed"}

// Alignment strategies.
const (
	AlignCommonPeriod = "common_period"
	AlignClimatology  = "climatology"
)

// ClimatologyYear is the synthetic year of climatology-aligned timestamps.
const ClimatologyYear = 2001

// DefaultAlertThresholdPct is the mean relative difference above which a
// comparison raises an alert.
const DefaultAlertThresholdPct = 5.0

// pctEpsilon guards relative differences against near-zero references.
const pctEpsilon = 1e-9

// CompareOptions control CompareTMY.
type CompareOptions struct {
	Options
	AlertThresholdPct float64
	// HourlyStepMinutes is the step used to integrate the aligned series.
	HourlyStepMinutes int
}

// DefaultCompareOptions returns DefaultOptions with a 5 % alert threshold.
func DefaultCompareOptions() CompareOptions {
	return CompareOptions{
		Options:           DefaultOptions(),
		AlertThresholdPct: DefaultAlertThresholdPct,
		HourlyStepMinutes: 60,
	}
}

// Metric compares one variable of A against B. Relative values use B as the
// reference.
type Metric struct {
	Variable string           `json:"variable"`
	N        int              `json:"n"`
	MeanA    timeseries.Float `json:"mean_a"`
	MeanB    timeseries.Float `json:"mean_b"`
	BiasMean timeseries.Float `json:"bias_mean"`
	MAE      timeseries.Float `json:"mae"`
	RMSE     timeseries.Float `json:"rmse"`
	MeanPct  timeseries.Float `json:"mean_pct"`
	MaxPct   timeseries.Float `json:"max_pct"`
	MaxAbs   timeseries.Float `json:"max_abs"`
}

// Comparison is the outcome of CompareTMY.
type Comparison struct {
	A *readers.TMYDataset `json:"-"`
	B *readers.TMYDataset `json:"-"`

	ReaderA     string `json:"reader_a"`
	ReaderB     string `json:"reader_b"`
	SourceA     string `json:"source_a"`
	SourceB     string `json:"source_b"`
	NativeStepA int    `json:"native_step_a_min"`
	NativeStepB int    `json:"native_step_b_min"`
	UsedStep    int    `json:"used_step_min"`

	AlignedA    *timeseries.Frame `json:"-"`
	AlignedB    *timeseries.Frame `json:"-"`
	Alignment   string            `json:"alignment"`
	CommonStart time.Time         `json:"common_start"`
	CommonEnd   time.Time         `json:"common_end"`
	AlignedRows int               `json:"aligned_rows"`

	Metrics           []Metric `json:"metrics"`
	Alert             bool     `json:"alert"`
	AlertThresholdPct float64  `json:"alert_threshold_pct"`

	EnergyA       Energy `json:"energy_a"`
	EnergyB       Energy `json:"energy_b"`
	EnergyACommon Energy `json:"energy_a_common"`
	EnergyBCommon Energy `json:"energy_b_common"`

	Warnings []string `json:"warnings"`
}

// CompareTMY reads two TMY files, aligns them hourly and computes per
// variable difference metrics.
//
// Native timesteps come from a read without resampling. Alignment first
// uses the common period; files with different reference years fall back
// to a (month, day, hour) climatology key.
func CompareTMY(ctx context.Context, dataA []byte, nameA string, dataB []byte, nameB string, opts CompareOptions) (*Comparison, error) {
	ctx, span := otel.Tracer(infrastructure.ServiceName).Start(ctx, "meteo.CompareTMY")
	defer span.End()

	opts.Options = opts.Options.withDefaults()
	if opts.AlertThresholdPct <= 0 {
		opts.AlertThresholdPct = DefaultAlertThresholdPct
	}
	if opts.HourlyStepMinutes <= 0 {
		opts.HourlyStepMinutes = 60
	}

	native := opts.TMY
	native.ResampleHourly = false
	nativeA, err := readers.ReadTMY(dataA, nameA, native)
	if err != nil {
		return nil, err
	}
	nativeB, err := readers.ReadTMY(dataB, nameB, native)
	if err != nil {
		return nil, err
	}

	dsA, err := readers.ReadTMY(dataA, nameA, opts.TMY)
	if err != nil {
		return nil, err
	}
	dsB, err := readers.ReadTMY(dataB, nameB, opts.TMY)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usedStep := 60
	if !opts.TMY.ResampleHourly {
		usedStep = min(nativeA.TimeStepMinutes, nativeB.TimeStepMinutes)
	}

	hourA := timeseries.HourlyMean(dsA.Frame.Select(CompareVariables...))
	hourB := timeseries.HourlyMean(dsB.Frame.Select(CompareVariables...))

	alignment := AlignCommonPeriod
	alA, alB, start, end := AlignByPeriod(hourA, hourB, CompareVariables)
	if alA.Empty() {
		infrastructure.LoggerWithContext(ctx).WarnContext(ctx,
			"No overlap on datetime; falling back to climatological alignment (month/day/hour).")
		alignment = AlignClimatology
		alA, alB, start, end = AlignByClimatology(hourA, hourB, CompareVariables)
	}
	if alA.Empty() {
		return nil, apperrors.NewAppValidationError(
			"No common timestamps found (even with climatological alignment). " +
				"Check that both files contain comparable time series and variables.")
	}

	metrics, alert := ComputeMetrics(alA, alB, alA.Columns(), opts.AlertThresholdPct)

	energyA, err := AnnualIrradiation(dsA.Frame, dsA.Units, dsA.TimeStepMinutes, opts.EnergyUnit)
	if err != nil {
		return nil, err
	}
	energyB, err := AnnualIrradiation(dsB.Frame, dsB.Units, dsB.TimeStepMinutes, opts.EnergyUnit)
	if err != nil {
		return nil, err
	}
	energyACommon, err := AnnualIrradiation(alA, dsA.Units, opts.HourlyStepMinutes, opts.EnergyUnit)
	if err != nil {
		return nil, err
	}
	energyBCommon, err := AnnualIrradiation(alB, dsB.Units, opts.HourlyStepMinutes, opts.EnergyUnit)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, w := range [][]string{dsA.Warnings, dsB.Warnings, energyA.Warnings, energyB.Warnings, energyACommon.Warnings, energyBCommon.Warnings} {
		warnings = append(warnings, w...)
	}

	span.SetAttributes(
		attribute.String("alignment", alignment),
		attribute.Int("aligned_rows", alA.Len()),
		attribute.Bool("alert", alert),
	)

	return &Comparison{
		A:                 dsA,
		B:                 dsB,
		ReaderA:           dsA.Reader,
		ReaderB:           dsB.Reader,
		SourceA:           dsA.SourceName,
		SourceB:           dsB.SourceName,
		NativeStepA:       nativeA.TimeStepMinutes,
		NativeStepB:       nativeB.TimeStepMinutes,
		UsedStep:          usedStep,
		AlignedA:          alA,
		AlignedB:          alB,
		Alignment:         alignment,
		CommonStart:       start,
		CommonEnd:         end,
		AlignedRows:       alA.Len(),
		Metrics:           metrics,
		Alert:             alert,
		AlertThresholdPct: opts.AlertThresholdPct,
		EnergyA:           energyA,
		EnergyB:           energyB,
		EnergyACommon:     energyACommon,
		EnergyBCommon:     energyBCommon,
		Warnings:          warnings,
	}, nil
}

func commonVariables(a, b *timeseries.Frame, vars []string) []string {
	var out []string
	for _, v := range vars {
		if a.Has(v) && b.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// AlignByPeriod restricts both frames to [max start, min end], joins
// them on timestamps and drops rows where either side has only NaN. It also
// returns the common period bounds.
func AlignByPeriod(a, b *timeseries.Frame, vars []string) (*timeseries.Frame, *timeseries.Frame, time.Time, time.Time) {
	vars = commonVariables(a, b, vars)
	if a.Empty() || b.Empty() || len(vars) == 0 {
		return timeseries.NewFrame(nil), timeseries.NewFrame(nil), time.Time{}, time.Time{}
	}

	loA, hiA := a.MinMaxTime()
	loB, hiB := b.MinMaxTime()
	start, end := loA, hiA
	if loB.After(start) {
		start = loB
	}
	if hiB.Before(end) {
		end = hiB
	}

	rowB := make(map[int64]int, b.Len())
	for i, t := range b.Index {
		if _, dup := rowB[t.UnixNano()]; !dup {
			rowB[t.UnixNano()] = i
		}
	}

	var rowsA, rowsB []int
	for i, t := range a.Index {
		if t.Before(start) || t.After(end) {
			continue
		}
		j, ok := rowB[t.UnixNano()]
		if !ok {
			continue
		}
		if allNaN(a, vars, i) || allNaN(b, vars, j) {
			continue
		}
		rowsA = append(rowsA, i)
		rowsB = append(rowsB, j)
	}

	outA := a.Select(vars...).Rows(rowsA)
	outB := b.Select(vars...).Rows(rowsB)
	outB.Index = outA.Index
	return outA, outB, start, end
}

type climKey struct {
	month     time.Month
	day, hour int
}

// AlignByClimatology joins the frames on (month, day, hour) and re-indexes
// them on ClimatologyYear. 29 February has no synthetic timestamp and is
// dropped. The first row of a duplicated key wins.
func AlignByClimatology(a, b *timeseries.Frame, vars []string) (*timeseries.Frame, *timeseries.Frame, time.Time, time.Time) {
	vars = commonVariables(a, b, vars)
	defaultStart := time.Date(ClimatologyYear, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultEnd := time.Date(ClimatologyYear, 12, 31, 23, 0, 0, 0, time.UTC)
	if len(vars) == 0 {
		return timeseries.NewFrame(nil), timeseries.NewFrame(nil), defaultStart, defaultEnd
	}

	key := func(t time.Time) climKey { return climKey{t.Month(), t.Day(), t.Hour()} }

	rowB := make(map[climKey]int, b.Len())
	for i, t := range b.Index {
		k := key(t)
		if _, dup := rowB[k]; !dup {
			rowB[k] = i
		}
	}

	type pair struct {
		at   time.Time
		a, b int
	}
	seen := make(map[climKey]bool, a.Len())
	var pairs []pair
	for i, t := range a.Index {
		k := key(t)
		if seen[k] || (k.month == time.February && k.day == 29) {
			continue
		}
		seen[k] = true
		j, ok := rowB[k]
		if !ok {
			continue
		}
		at := time.Date(ClimatologyYear, k.month, k.day, k.hour, 0, 0, 0, time.UTC)
		pairs = append(pairs, pair{at: at, a: i, b: j})
	}
	sort.SliceStable(pairs, func(x, y int) bool { return pairs[x].at.Before(pairs[y].at) })

	index := make([]time.Time, len(pairs))
	rowsA := make([]int, len(pairs))
	rowsB := make([]int, len(pairs))
	for n, p := range pairs {
		index[n], rowsA[n], rowsB[n] = p.at, p.a, p.b
	}

	outA := a.Select(vars...).Rows(rowsA)
	outB := b.Select(vars...).Rows(rowsB)
	outA.Index = index
	outB.Index = index
	if len(index) == 0 {
		return outA, outB, defaultStart, defaultEnd
	}
	return outA, outB, index[0], index[len(index)-1]
}

func allNaN(f *timeseries.Frame, vars []string, row int) bool {
	for _, v := range vars {
		if !math.IsNaN(f.Column(v)[row]) {
			return false
		}
	}
	return true
}

// ComputeMetrics compares aligned frames variable by variable. Only rows
// finite on both sides count. The alert is raised when any mean relative
// difference exceeds thresholdPct. Metrics are sorted by variable.
func ComputeMetrics(a, b *timeseries.Frame, vars []string, thresholdPct float64) ([]Metric, bool) {
	var (
		out   []Metric
		alert bool
	)
	for _, v := range vars {
		va, vb := a.Column(v), b.Column(v)
		if va == nil || vb == nil {
			continue
		}

		var aa, bb []float64
		for i := range va {
			if isFinite(va[i]) && isFinite(vb[i]) {
				aa = append(aa, va[i])
				bb = append(bb, vb[i])
			}
		}
		if len(aa) == 0 {
			nan := timeseries.Float(math.NaN())
			out = append(out, Metric{Variable: v, MeanA: nan, MeanB: nan, BiasMean: nan, MAE: nan, RMSE: nan, MeanPct: nan, MaxPct: nan, MaxAbs: nan})
			continue
		}

		diff := make([]float64, len(aa))
		absDiff := make([]float64, len(aa))
		sq := make([]float64, len(aa))
		pcts := make([]float64, len(aa))
		for i := range aa {
			diff[i] = aa[i] - bb[i]
			absDiff[i] = math.Abs(diff[i])
			sq[i] = diff[i] * diff[i]
			pcts[i] = math.NaN()
			if math.Abs(bb[i]) > pctEpsilon {
				pcts[i] = absDiff[i] / math.Abs(bb[i]) * 100.0
			}
		}

		meanPct := timeseries.Mean(pcts)
		if isFinite(meanPct) && meanPct > thresholdPct {
			alert = true
		}
		out = append(out, Metric{
			Variable: v,
			N:        len(aa),
			MeanA:    timeseries.Float(timeseries.Mean(aa)),
			MeanB:    timeseries.Float(timeseries.Mean(bb)),
			BiasMean: timeseries.Float(timeseries.Mean(diff)),
			MAE:      timeseries.Float(timeseries.Mean(absDiff)),
			RMSE:     timeseries.Float(math.Sqrt(timeseries.Mean(sq))),
			MeanPct:  timeseries.Float(meanPct),
			MaxPct:   timeseries.Float(timeseries.Max(pcts)),
			MaxAbs:   timeseries.Float(timeseries.Max(absDiff)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Variable < out[j].Variable })
	return out, alert
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
