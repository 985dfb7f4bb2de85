package meteo

import (
	"fmt"
	"math"
	"strings"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/timeseries"
	"pvinsight/internal/units"
)

// StatColumns are the variables described by BasicStats, in order.
var StatColumns = []string{"ghi", "dni", "dhi", "temp"}

// Stat is the mean, min and max of one variable. NaN values are ignored.
type Stat struct {
	Variable string           `json:"variable"`
	Mean     timeseries.Float `json:"mean"`
	Min      timeseries.Float `json:"min"`
	Max      timeseries.Float `json:"max"`
}

// BasicStats describes the StatColumns present in f.
func BasicStats(f *timeseries.Frame) []Stat {
	var out []Stat
	for _, c := range StatColumns {
		values := f.Column(c)
		if values == nil {
			continue
		}
		out = append(out, Stat{
			Variable: c,
			Mean:     timeseries.Float(timeseries.Mean(values)),
			Min:      timeseries.Float(timeseries.Min(values)),
			Max:      timeseries.Float(timeseries.Max(values)),
		})
	}
	return out
}

// VariableLabel returns the display label of a variable with its unit.
func VariableLabel(col string, unitsByCol map[string]string) string {
	u := unitsByCol[col]
	name := col
	switch col {
	case "ghi", "dni", "dhi":
		name = strings.ToUpper(col)
	case "temp":
		name = "Temperature"
	}
	return fmt.Sprintf("%s (%s)", name, u)
}

// PrettyStats labels the statistics and rounds them to 2 decimals.
func PrettyStats(stats []Stat, unitsByCol map[string]string) []Stat {
	out := make([]Stat, len(stats))
	for i, s := range stats {
		out[i] = Stat{
			Variable: VariableLabel(s.Variable, unitsByCol),
			Mean:     timeseries.Float(timeseries.Round(float64(s.Mean), 2)),
			Min:      timeseries.Float(timeseries.Round(float64(s.Min), 2)),
			Max:      timeseries.Float(timeseries.Round(float64(s.Max), 2)),
		}
	}
	return out
}

// Energy is the integrated irradiation of ghi, dni and dhi. A nil value
// means the column is absent or the timestep is unknown.
type Energy struct {
	AnnualGHI *timeseries.Float `json:"annual_ghi"`
	AnnualDNI *timeseries.Float `json:"annual_dni"`
	AnnualDHI *timeseries.Float `json:"annual_dhi"`
	Unit      string            `json:"unit"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// Value returns the annual irradiation of col.
func (e Energy) Value(col string) *timeseries.Float {
	switch col {
	case "ghi":
		return e.AnnualGHI
	case "dni":
		return e.AnnualDNI
	case "dhi":
		return e.AnnualDHI
	}
	return nil
}

// AnnualIrradiation integrates irradiance columns over the timestep and
// returns the totals in Wh/m² or kWh/m².
func AnnualIrradiation(f *timeseries.Frame, unitsByCol map[string]string, stepMinutes int, energyUnit string) (Energy, error) {
	energyUnit = units.NormalizeUnit(energyUnit)
	if stepMinutes <= 0 {
		return Energy{
			Unit:     energyUnit,
			Warnings: []string{"[energy] Unknown timestep; cannot compute integrated energy."},
		}, nil
	}
	if energyUnit != units.WattHourPerM2 && energyUnit != units.KiloWattHourPerM2 {
		return Energy{}, apperrors.NewAppValidationError(
			fmt.Sprintf("energy_unit must be '%s' or '%s'", units.WattHourPerM2, units.KiloWattHourPerM2))
	}

	compute := func(col string) *timeseries.Float {
		values := f.Column(col)
		if values == nil {
			return nil
		}
		u := unitsByCol[col]
		if u == "" {
			u = units.WattPerM2
		}
		w := units.ToWattsPerM2(values, u)
		totalWh := timeseries.Sum(w) * float64(stepMinutes) / 60.0
		if energyUnit == units.KiloWattHourPerM2 {
			totalWh /= 1000.0
		}
		return timeseries.FloatPtr(totalWh)
	}

	return Energy{
		AnnualGHI: compute("ghi"),
		AnnualDNI: compute("dni"),
		AnnualDHI: compute("dhi"),
		Unit:      energyUnit,
	}, nil
}

// DefaultGHIBinWidth is the class width of GHIDistribution in W/m².
const DefaultGHIBinWidth = 200

// GHIClass is one irradiance class of the GHI distribution.
type GHIClass struct {
	Class string           `json:"class"`
	N     int              `json:"n"`
	Pct   timeseries.Float `json:"pct"`
}

// GHIDistribution counts positive GHI values (in W/m²) per right-closed class
// of binWidth. Classes run from 0 up to the first multiple of binWidth not
// below the maximum.
func GHIDistribution(f *timeseries.Frame, binWidth int) []GHIClass {
	if binWidth <= 0 {
		binWidth = DefaultGHIBinWidth
	}
	values := f.Column("ghi")
	var pos []float64
	for _, v := range values {
		if v > 0 {
			pos = append(pos, v)
		}
	}
	if len(pos) == 0 {
		return []GHIClass{}
	}

	w := float64(binWidth)
	vmax := math.Max(timeseries.Max(pos), w)
	upper := int(math.Ceil(vmax/w)) * binWidth
	n := upper / binWidth

	counts := make([]int, n)
	for _, v := range pos {
		k := int(math.Ceil(v/w)) - 1
		if k >= 0 && k < n {
			counts[k]++
		}
	}
	total := 0
	for _, c := range counts {
		total += c
	}

	out := make([]GHIClass, n)
	for k := range out {
		lo, hi := k*binWidth, (k+1)*binWidth
		share := 0.0
		if total > 0 {
			share = timeseries.Round(float64(counts[k])/float64(total)*100.0, 1)
		}
		out[k] = GHIClass{
			Class: fmt.Sprintf("[%d–%d] W/m²", lo, hi),
			N:     counts[k],
			Pct:   timeseries.Float(share),
		}
	}
	return out
}
