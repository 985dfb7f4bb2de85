package production

import (
	"time"

	"pvinsight/internal/readers"
	"pvinsight/internal/timeseries"
)

// DefaultThresholdColumn is the column used by threshold and distribution
// studies when none is given.
const DefaultThresholdColumn = readers.MandatoryHourlyColumn

// Options configure a run of the hourly analyses.
type Options struct {
	// ThresholdValue is expressed in the unit of ThresholdColumn.
	ThresholdValue float64 `json:"threshold_value"`
	// ThresholdColumn defaults to E_Grid.
	ThresholdColumn string `json:"threshold_column"`
	// NightDisconnection clamps negative values to 0 for threshold and
	// distribution studies. Night consumption still uses the raw series.
	NightDisconnection bool `json:"night_disconnection"`
	// GridCapacityKW enables load factor computations. nil disables them.
	GridCapacityKW *float64 `json:"grid_capacity_kw,omitempty"`
}

// Normalize applies defaults and drops non-positive capacities.
func (o Options) Normalize() Options {
	if o.ThresholdColumn == "" {
		o.ThresholdColumn = DefaultThresholdColumn
	}
	if o.GridCapacityKW != nil && *o.GridCapacityKW <= 0 {
		o.GridCapacityKW = nil
	}
	return o
}

// Context carries the parsed export through every analysis.
type Context struct {
	InputFile   string
	GeneralInfo map[string]string
	Units       map[string]string
	Frame       *timeseries.Frame
	Options     Options
	Results     Results
}

// NewContext builds a Context from a parsed export.
func NewContext(inputFile string, hourly *readers.HourlyResult, opts Options) *Context {
	return &Context{
		InputFile:   inputFile,
		GeneralInfo: hourly.GeneralInfo,
		Units:       hourly.Units,
		Frame:       hourly.Frame,
		Options:     opts.Normalize(),
	}
}

// Unit returns the trimmed unit of a column.
func (c *Context) Unit(col string) string {
	return trimUnit(c.Units[col])
}

// Period returns the first and last timestamps of the data.
func (c *Context) Period() (time.Time, time.Time, bool) {
	if c.Frame.Empty() {
		return time.Time{}, time.Time{}, false
	}
	lo, hi := c.Frame.MinMaxTime()
	return lo, hi, true
}

// ProjectName returns the project code or file from the export preamble.
func (c *Context) ProjectName() string {
	if v := c.GeneralInfo[readers.InfoProjectCode]; v != "" {
		return v
	}
	return c.GeneralInfo[readers.InfoProjectFile]
}

// Availability is embedded in every analysis result.
type Availability struct {
	Available      bool                `json:"available"`
	Empty          bool                `json:"empty,omitempty"`
	MissingColumns []string            `json:"missing_columns,omitempty"`
	Suggestions    map[string][]string `json:"suggestions,omitempty"`
}

// IsAvailable reports whether the analysis could run.
func (a Availability) IsAvailable() bool { return a.Available }

// HasData reports whether the analysis ran and produced data.
func (a Availability) HasData() bool { return a.Available && !a.Empty }

// Result is implemented by every analysis result.
type Result interface {
	IsAvailable() bool
	HasData() bool
}

// Timestep is the sampling step an analysis integrated with.
type Timestep struct {
	DTHours timeseries.Float    `json:"dt_hours"`
	DTMeta  timeseries.StepMeta `json:"dt_meta"`
}

// Results holds one typed result per analysis id.
type Results struct {
	GlobalProduction  *GlobalProductionResult  `json:"global_production,omitempty"`
	Threshold         *ThresholdResult         `json:"threshold,omitempty"`
	PowerDistribution *PowerDistributionResult `json:"power_distribution,omitempty"`
	InverterClipping  *ClippingResult          `json:"inverter_clipping,omitempty"`
	GridLimit         *GridLimitResult         `json:"grid_limit,omitempty"`
	LoadFactor        *LoadFactorResult        `json:"load_factor,omitempty"`
}

// Get returns the result stored for an analysis id.
func (r *Results) Get(id string) (Result, bool) {
	var res Result
	switch id {
	case IDGlobalProduction:
		if r.GlobalProduction != nil {
			res = r.GlobalProduction
		}
	case IDThreshold:
		if r.Threshold != nil {
			res = r.Threshold
		}
	case IDPowerDistribution:
		if r.PowerDistribution != nil {
			res = r.PowerDistribution
		}
	case IDInverterClipping:
		if r.InverterClipping != nil {
			res = r.InverterClipping
		}
	case IDGridLimit:
		if r.GridLimit != nil {
			res = r.GridLimit
		}
	case IDLoadFactor:
		if r.LoadFactor != nil {
			res = r.LoadFactor
		}
	}
	return res, res != nil
}

// Available lists the ids of available results in analysis order.
func (r *Results) Available() []string {
	var ids []string
	for _, id := range AnalysisIDs {
		if res, ok := r.Get(id); ok && res.IsAvailable() {
			ids = append(ids, id)
		}
	}
	return ids
}

// GlobalProductionResult summarises production over the whole period.
type GlobalProductionResult struct {
	Availability
	Summary *GlobalProductionSummary `json:"summary,omitempty"`
}

type GlobalProductionSummary struct {
	Column string `json:"column"`
	Unit   string `json:"unit"`
	Timestep
	NightDisconnection bool `json:"night_disconnection"`

	TotalHours     timeseries.Float `json:"total_hours"`
	OperatingHours timeseries.Float `json:"operating_hours"`
	OperatingPct   timeseries.Float `json:"operating_pct"`

	ProductionWithoutImportKWh timeseries.Float `json:"production_without_import_kwh"`
	NetProductionKWh           timeseries.Float `json:"net_production_kwh"`

	ImportHours         timeseries.Float `json:"import_hours"`
	NightConsumptionKWh timeseries.Float `json:"night_consumption_kwh"`
}

// ThresholdResult compares production with a threshold.
type ThresholdResult struct {
	Availability
	Summary                 *ThresholdSummary     `json:"summary,omitempty"`
	Monthly                 []MonthlyAbove        `json:"monthly,omitempty"`
	Seasonal                []SeasonalAbove       `json:"seasonal,omitempty"`
	MonthlyPct              []MonthlyShare        `json:"monthly_pct,omitempty"`
	NightConsumptionMonthly []MonthlyNightConsume `json:"night_consumption_monthly"`
}

type ThresholdSummary struct {
	ThresholdColumn string           `json:"threshold_column"`
	ThresholdValue  timeseries.Float `json:"threshold_value"`
	Unit            string           `json:"unit"`
	Timestep
	NightDisconnection bool `json:"night_disconnection"`

	OperatingHours        timeseries.Float `json:"operating_hours"`
	HoursAbove            timeseries.Float `json:"hours_above"`
	PctAboveOperatingTime timeseries.Float `json:"pct_above_operating_time"`
	EnergyAboveKWh        timeseries.Float `json:"energy_above_kwh"`
	NightImportHours      timeseries.Float `json:"night_import_hours"`
	NightConsumptionKWh   timeseries.Float `json:"night_consumption_kwh"`
}

type MonthlyAbove struct {
	MonthName      string           `json:"month_name"`
	HoursAbove     timeseries.Float `json:"hours_above"`
	EnergyAboveKWh timeseries.Float `json:"energy_above_kwh"`
}

type SeasonalAbove struct {
	Season         string           `json:"season"`
	HoursAbove     timeseries.Float `json:"hours_above"`
	EnergyAboveKWh timeseries.Float `json:"energy_above_kwh"`
}

type MonthlyShare struct {
	MonthName string           `json:"month_name"`
	PctAbove  timeseries.Float `json:"pct_above"`
}

type MonthlyNightConsume struct {
	MonthName           string           `json:"month_name"`
	ImportHours         timeseries.Float `json:"import_hours"`
	NightConsumptionKWh timeseries.Float `json:"night_consumption_kwh"`
}

// PowerDistributionResult classifies production steps by their ratio to the
// maximum.
type PowerDistributionResult struct {
	Availability
	Unit string `json:"unit,omitempty"`
	Timestep
	MaxValue           timeseries.Float `json:"max_value"`
	Classes            []PowerClass     `json:"summary,omitempty"`
	NightDisconnection bool             `json:"night_disconnection"`
}

type PowerClass struct {
	Class     string           `json:"class"`
	Hours     timeseries.Float `json:"hours"`
	PctTime   timeseries.Float `json:"pct_time"`
	EnergyKWh timeseries.Float `json:"energy_kwh"`
}

// ClippingResult quantifies energy lost to inverter Pmax limitation.
type ClippingResult struct {
	Availability
	Summary *ClippingSummary  `json:"summary,omitempty"`
	Monthly []MonthlyClipping `json:"monthly,omitempty"`
}

type ClippingSummary struct {
	EnergyClipped  timeseries.Float `json:"energy_clipped"`
	PctOfPotential timeseries.Float `json:"pct_of_potential"`
	HoursClipping  int              `json:"hours_clipping"`
}

type MonthlyClipping struct {
	MonthName   string           `json:"month_name"`
	ILPmax      timeseries.Float `json:"IL_Pmax"`
	PctClipping timeseries.Float `json:"pct_clipping"`
}

// GridLimitResult quantifies energy lost to the grid injection limit.
type GridLimitResult struct {
	Availability
	Summary           *GridLimitSummary   `json:"summary,omitempty"`
	Monthly           []MonthlyGridLimit  `json:"monthly,omitempty"`
	MonthlyLoadFactor []MonthlyLoadFactor `json:"monthly_load_factor"`
}

type GridLimitSummary struct {
	Timestep
	LostKWh          timeseries.Float  `json:"lost_kwh"`
	InjectedKWh      timeseries.Float  `json:"injected_kwh"`
	PotentialKWh     timeseries.Float  `json:"potential_kwh"`
	LostPct          timeseries.Float  `json:"lost_pct"`
	HoursLimited     timeseries.Float  `json:"hours_limited"`
	TotalHours       timeseries.Float  `json:"total_hours"`
	GridCapacityKW   *float64          `json:"grid_capacity_kw"`
	AnnualLoadFactor *timeseries.Float `json:"annual_load_factor"`
}

type MonthlyGridLimit struct {
	MonthName    string           `json:"month_name"`
	LostKWh      timeseries.Float `json:"lost_kwh"`
	LostPct      timeseries.Float `json:"lost_pct"`
	HoursLimited timeseries.Float `json:"hours_limited"`
	InjectedKWh  timeseries.Float `json:"injected_kwh"`
}

// MonthlyLoadFactor is active energy over capacity times hours for a month.
type MonthlyLoadFactor struct {
	MonthName  string           `json:"month_name"`
	LoadFactor timeseries.Float `json:"load_factor"`
	EnergyKWh  timeseries.Float `json:"energy_kwh"`
}

// LoadFactorResult describes apparent, reactive and active energy at the
// grid connection.
type LoadFactorResult struct {
	Availability
	Summary           *LoadFactorSummary   `json:"summary,omitempty"`
	Monthly           []MonthlyPowerFactor `json:"monthly,omitempty"`
	Saturation        []SaturationClass    `json:"saturation_distribution"`
	MonthlyLoadFactor []MonthlyLoadFactor  `json:"monthly_load_factor"`
}

type LoadFactorSummary struct {
	Timestep
	TotalHours     timeseries.Float `json:"total_hours"`
	GridCapacityKW *float64         `json:"grid_capacity_kw"`

	SKWh   timeseries.Float  `json:"S_kWh_equiv"`
	QKWh   timeseries.Float  `json:"Q_kWh_equiv"`
	PKWh   *timeseries.Float `json:"P_kWh"`
	CosPhi *timeseries.Float `json:"cosphi"`
	QShare *timeseries.Float `json:"q_share"`

	AnnualLoadFactor *timeseries.Float `json:"annual_load_factor"`
	SMax             timeseries.Float  `json:"S_max"`
}

type MonthlyPowerFactor struct {
	MonthName string            `json:"month_name"`
	SKWh      timeseries.Float  `json:"S_kWh_equiv"`
	QKWh      timeseries.Float  `json:"Q_kWh_equiv"`
	PKWh      *timeseries.Float `json:"P_kWh"`
	CosPhi    *timeseries.Float `json:"cosphi"`
	QShare    timeseries.Float  `json:"q_share"`
}

type SaturationClass struct {
	Class   string           `json:"class"`
	Steps   int              `json:"steps"`
	Hours   timeseries.Float `json:"hours"`
	PctTime timeseries.Float `json:"pct_time"`
}
