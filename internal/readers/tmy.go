package readers

import (
	"fmt"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/timeseries"
	"pvinsight/internal/units"
)

// Reader names reported in TMYDataset.Reader.
const (
	ReaderPVSyst   = "pvsyst"
	ReaderSolargis = "solargis"
)

// MeteoColumns are the canonical TMY columns kept by every reader, in order.
var MeteoColumns = []string{"ghi", "dni", "dhi", "gpi", "temp", "wind_speed", "wind_direction"}

var (
	irradianceSumColumns = []string{"ghi", "dni", "dhi", "gpi"}
	meteoMeanColumns     = []string{"temp", "wind_speed", "wind_direction"}
)

// TMYDataset is a normalised Typical Meteorological Year.
type TMYDataset struct {
	Frame           *timeseries.Frame
	HeaderInfo      map[string]string
	Units           map[string]string
	TimeStepMinutes int
	Quality         timeseries.Quality
	SourceName      string
	Reader          string
	Warnings        []string
}

// TMYOptions control normalisation after parsing.
type TMYOptions struct {
	// TargetIrradianceUnit is W/m² or kW/m².
	TargetIrradianceUnit string
	// ResampleHourly aggregates sub-hourly files to 1 h.
	ResampleHourly bool
	// AssumedYear is used by Solargis files that only carry day-of-year.
	AssumedYear int
}

// DefaultTMYOptions returns kW/m², hourly resampling and year 2001.
func DefaultTMYOptions() TMYOptions {
	return TMYOptions{
		TargetIrradianceUnit: units.KiloWattPerM2,
		ResampleHourly:       true,
		AssumedYear:          2001,
	}
}

func (o TMYOptions) withDefaults() TMYOptions {
	d := DefaultTMYOptions()
	if o.TargetIrradianceUnit == "" {
		o.TargetIrradianceUnit = d.TargetIrradianceUnit
	}
	if o.AssumedYear == 0 {
		o.AssumedYear = d.AssumedYear
	}
	return o
}

// TMYReader parses one TMY file flavour.
type TMYReader interface {
	Name() string
	Read(data []byte, sourceName string, opts TMYOptions) (*TMYDataset, error)
}

// TMYReaders returns the readers tried by ReadTMY, in order.
func TMYReaders() []TMYReader {
	return []TMYReader{PVSystTMYReader{}, SolargisTMYReader{}}
}

// ReadTMY tries each supported reader in turn and returns the first success.
func ReadTMY(data []byte, sourceName string, opts TMYOptions) (*TMYDataset, error) {
	var lastErr error
	for _, r := range TMYReaders() {
		ds, err := r.Read(data, sourceName, opts)
		if err == nil {
			return ds, nil
		}
		lastErr = err
	}
	return nil, apperrors.NewParsingError(
		fmt.Sprintf("Unable to read TMY file with supported readers (PVSyst, SolarGIS). Last error: %s", apperrors.Message(lastErr)),
		lastErr)
}

// finishTMY converts irradiance, optionally resamples and runs the quality
// check. It is the common tail of every TMY reader.
func finishTMY(ds *TMYDataset, opts TMYOptions, resampleNote string, droppedRows int) (*TMYDataset, error) {
	conv, err := units.ConvertIrradiance(ds.Frame, ds.Units, opts.TargetIrradianceUnit)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	ds.Frame = conv.Frame
	ds.Units = conv.Units
	ds.Warnings = append(ds.Warnings, conv.Warnings...)

	if opts.ResampleHourly && ds.TimeStepMinutes < 60 {
		ds.Frame = timeseries.ResampleHourly(ds.Frame, irradianceSumColumns, meteoMeanColumns)
		ds.TimeStepMinutes = 60
		ds.Warnings = append(ds.Warnings, resampleNote)
	}

	ds.Quality = timeseries.QualityCheck(ds.Frame, ds.TimeStepMinutes)
	ds.Quality.NaT = droppedRows
	if ds.Quality.Warning != "" {
		ds.Warnings = append(ds.Warnings, "[quality] "+ds.Quality.Warning)
	}
	return ds, nil
}

// keepMeteo restricts a frame to MeteoColumns.
func keepMeteo(f *timeseries.Frame) *timeseries.Frame {
	return f.Select(MeteoColumns...)
}
