package operations

import (
	"time"

	"pvinsight/internal/exporter"
	"pvinsight/internal/production"
)

// Tool identifiers
const (
	ToolHourly     = "hourly_results_analysis"
	ToolTMY        = "tmy_analysis"
	ToolTMYCompare = "tmy_compare"
)

// Step identifiers
const (
	StepIDLoad    = "load"
	StepIDAnalyze = "analyze"
	StepIDCompare = "compare"
	StepIDExport  = "export"
)

// Step names
const (
	StepNameLoad    = "Load input files"
	StepNameAnalyze = "Run analyses"
	StepNameCompare = "Compare datasets"
	StepNameExport  = "Write reports"
)

// Context keys for data passed between steps
const (
	ContextKeyInputs   = "inputs"
	ContextKeyResult   = "result"
	ContextKeyOutputs  = "outputs"
	ContextKeyAlert    = "alert"
	ContextKeyWarnings = "warnings"
)

// WebSocket event types
const (
	EventTypeOperationSnapshot = "operation:snapshot"
)

// Default timeouts
const (
	DefaultStageTimeout = 5 * time.Minute
	DefaultLoadTimeout  = 1 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Input is one source file of a run.
type Input struct {
	// Name is the display name used in reports and output file names.
	Name string `json:"name"`
	// Path is where the file is read from.
	Path string `json:"path"`
	// Checksum is the hex BLAKE2b-256 of the file, when known.
	Checksum string `json:"checksum,omitempty"`
	Data     []byte `json:"-"`
}

// OperationRequest asks for one tool run.
type OperationRequest struct {
	ID     string  `json:"id"`
	Tool   string  `json:"tool" validate:"required,oneof=hourly_results_analysis tmy_analysis tmy_compare"`
	Inputs []Input `json:"inputs" validate:"required,min=1,max=2,dive"`
	// Hourly carries the threshold options of hourly runs.
	Hourly *production.Options `json:"hourly,omitempty"`
	// OutputDir overrides the configured outputs directory.
	OutputDir  string                 `json:"output_dir,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse is the outcome of a run.
type OperationResponse struct {
	ID       string                `json:"id"`
	Tool     string                `json:"tool"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Outputs  exporter.Outputs      `json:"outputs"`
	Alert    bool                  `json:"alert,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Error    string                `json:"error,omitempty"`
	// Result is the analysis object of the tool: *production.Context,
	// *meteo.Analysis or *meteo.Comparison.
	Result interface{} `json:"-"`
}
