// Package units normalises the unit labels found in PVSyst and Solargis
// exports and converts irradiance columns between W/m² and kW/m².
package units

import (
	"fmt"
	"strings"

	"pvinsight/internal/timeseries"
)

// Canonical unit labels.
const (
	WattPerM2         = "W/m²"
	KiloWattPerM2     = "kW/m²"
	WattHourPerM2     = "Wh/m²"
	KiloWattHourPerM2 = "kWh/m²"
	Celsius           = "°C"
	MeterPerSecond    = "m/s"
	Degree            = "deg"
	Ratio             = "ratio"
)

var aliases = map[string]string{
	"w/m2":  WattPerM2,
	"w/m^2": WattPerM2,
	"w/m²":  WattPerM2,

	"kw/m2":  KiloWattPerM2,
	"kw/m^2": KiloWattPerM2,
	"kw/m²":  KiloWattPerM2,

	"wh/m2":  WattHourPerM2,
	"wh/m^2": WattHourPerM2,
	"wh/m²":  WattHourPerM2,

	"kwh/m2":  KiloWattHourPerM2,
	"kwh/m^2": KiloWattHourPerM2,
	"kwh/m²":  KiloWattHourPerM2,

	"deg.c": Celsius,
	"deg_c": Celsius,
	"°c":    Celsius,

	"m/sec": MeterPerSecond,
	"m/s":   MeterPerSecond,

	"°":     Degree,
	"deg":   Degree,
	"ratio": Ratio,
	"":      "",
}

// Canonical meteo column groups.
var (
	IrradianceColumns  = []string{"ghi", "dni", "dhi", "gpi"}
	TemperatureColumns = []string{"temp"}
	WindSpeedColumns   = []string{"wind_speed"}
	WindDirColumns     = []string{"wind_direction"}
)

// IsIrradiance reports whether col is an irradiance-like canonical column.
func IsIrradiance(col string) bool {
	for _, c := range IrradianceColumns {
		if c == col {
			return true
		}
	}
	return false
}

// NormalizeUnit maps a unit label to its canonical spelling. Unknown labels
// are returned trimmed with their original case.
func NormalizeUnit(u string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(u)), " ", "")
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return strings.TrimSpace(u)
}

// IsIrradianceUnit reports whether u is W/m² or kW/m² after normalisation.
func IsIrradianceUnit(u string) bool {
	n := NormalizeUnit(u)
	return n == WattPerM2 || n == KiloWattPerM2
}

// IsIrradiationUnit reports whether u is Wh/m² or kWh/m² after normalisation.
func IsIrradiationUnit(u string) bool {
	n := NormalizeUnit(u)
	return n == WattHourPerM2 || n == KiloWattHourPerM2
}

// Conversion is the outcome of ConvertIrradiance.
type Conversion struct {
	Frame    *timeseries.Frame
	Units    map[string]string
	Warnings []string
}

// ConvertIrradiance converts the irradiance columns of f to target (W/m² or
// kW/m²). Columns with no unit are assumed to be W/m². The input frame and
// unit map are left untouched.
func ConvertIrradiance(f *timeseries.Frame, unitsByCol map[string]string, target string) (Conversion, error) {
	target = NormalizeUnit(target)
	if target != WattPerM2 && target != KiloWattPerM2 {
		return Conversion{}, fmt.Errorf("target unit must be '%s' or '%s', got %q", WattPerM2, KiloWattPerM2, target)
	}

	out := f.Clone()
	newUnits := make(map[string]string, len(unitsByCol))
	for k, v := range unitsByCol {
		newUnits[k] = v
	}
	var warnings []string

	for _, col := range out.Columns() {
		if !IsIrradiance(col) {
			continue
		}

		src := NormalizeUnit(newUnits[col])
		if src == "" {
			src = WattPerM2
			warnings = append(warnings, fmt.Sprintf("[units] Missing unit for '%s', assuming %s.", col, src))
		}

		if src != WattPerM2 && src != KiloWattPerM2 {
			warnings = append(warnings, fmt.Sprintf("[units] Unknown irradiance unit '%s' for '%s', no conversion applied.", src, col))
			continue
		}

		newUnits[col] = target
		if src == target {
			continue
		}

		factor := 1000.0
		if src == WattPerM2 {
			factor = 0.001
		}
		values := out.Column(col)
		for i := range values {
			values[i] *= factor
		}
	}

	return Conversion{Frame: out, Units: newUnits, Warnings: warnings}, nil
}

// ToWattsPerM2 returns irradiance values expressed in W/m².
func ToWattsPerM2(values []float64, unit string) []float64 {
	out := make([]float64, len(values))
	factor := 1.0
	if NormalizeUnit(unit) == KiloWattPerM2 {
		factor = 1000.0
	}
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}
