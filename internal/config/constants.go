package config

// Application identity
const (
	AppName    = "PVInsight — PVSyst Analyzer"
	AppVersion = "0.1.0"
)

// PVSystDateLayout is the timestamp layout PVSyst uses in Hourly Results
// exports. Readers try it first before falling back to other layouts.
const PVSystDateLayout = "02/01/2006 15:04"

// Output sub-directories created under every tool directory
const (
	ReportsSubdir = "reports"
	FiguresSubdir = "figures"
	LogsSubdir    = "logs"
)

// Output modes
const (
	// OutputModeLatest writes to {outputs}/latest/{tool}/...
	OutputModeLatest = "latest"
	// OutputModeFlat writes every tool into {outputs}/...
	OutputModeFlat = "flat"
)

// Tool identifiers
const (
	ToolTMYAnalysis    = "tmy_analysis"
	ToolTMYCompare     = "tmy_compare"
	ToolHourlyAnalysis = "hourly_results_analysis"
)
