package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"pvinsight/internal/config"
	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/meteo"
	"pvinsight/internal/production"
	"pvinsight/internal/readers"
)

// StageOptions contains the shared dependencies of the tool steps
type StageOptions struct {
	StatusBroadcaster *StatusBroadcaster
	Metrics           *infrastructure.BusinessMetrics
	Logger            *slog.Logger
}

func (o *StageOptions) logger(stepID string) *slog.Logger {
	logger := slog.Default()
	if o != nil && o.Logger != nil {
		logger = o.Logger
	}
	return logger.With(slog.String("step", stepID))
}

func (o *StageOptions) metrics() *infrastructure.BusinessMetrics {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// updateProgress records step progress and forwards it to the broadcaster.
func (o *StageOptions) updateProgress(operationID string, step *StepState, progress int, message string) {
	if step != nil {
		step.UpdateProgress(float64(progress), message)
	}
	if o != nil && o.StatusBroadcaster != nil && step != nil {
		o.StatusBroadcaster.UpdateStepProgress(operationID, step.ID, progress, message)
	}
}

// MeteoOptions maps the analysis configuration to TMY options.
func MeteoOptions(cfg config.AnalysisConfig) meteo.Options {
	opts := meteo.DefaultOptions()
	if cfg.TargetIrradianceUnit != "" {
		opts.TMY.TargetIrradianceUnit = cfg.TargetIrradianceUnit
	}
	opts.TMY.ResampleHourly = cfg.ResampleSubHourly
	if cfg.SolargisAssumedYear > 0 {
		opts.TMY.AssumedYear = cfg.SolargisAssumedYear
	}
	if cfg.EnergyUnit != "" {
		opts.EnergyUnit = cfg.EnergyUnit
	}
	if cfg.GHIBinWidth > 0 {
		opts.GHIBinWidth = cfg.GHIBinWidth
	}
	return opts
}

// CompareOptions maps the analysis configuration to comparison options.
func CompareOptions(cfg config.AnalysisConfig) meteo.CompareOptions {
	opts := meteo.DefaultCompareOptions()
	opts.Options = MeteoOptions(cfg)
	if cfg.CompareAlertMeanPct > 0 {
		opts.AlertThresholdPct = cfg.CompareAlertMeanPct
	}
	return opts
}

// HourlyOptions returns the configured defaults of an hourly run.
func HourlyOptions(cfg config.AnalysisConfig) production.Options {
	return production.Options{
		ThresholdValue:     cfg.ThresholdValue,
		ThresholdColumn:    cfg.ThresholdColumn,
		NightDisconnection: cfg.NightDisconnection,
	}.Normalize()
}

// LoadInputsStep reads the source files of a run.
type LoadInputsStep struct {
	BaseStage
	expected int
	options  *StageOptions
}

// NewLoadInputsStep creates a load step expecting n input files.
func NewLoadInputsStep(n int, options *StageOptions) *LoadInputsStep {
	return &LoadInputsStep{
		BaseStage: NewBaseStage(StepIDLoad, StepNameLoad, nil),
		expected:  n,
		options:   options,
	}
}

// Validate checks the number of inputs.
func (s *LoadInputsStep) Validate(state *OperationState) error {
	if got := len(state.Request.Inputs); got != s.expected {
		return fmt.Errorf("%s expects %d input file(s), got %d", state.Tool, s.expected, got)
	}
	return nil
}

// Execute reads every input not already in memory.
func (s *LoadInputsStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStage(s.ID())
	logger := s.options.logger(s.ID())

	inputs := make([]Input, len(state.Request.Inputs))
	for i, in := range state.Request.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if in.Data == nil {
			data, base, err := readers.ReadFile(in.Path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return apperrors.NewNotFoundError(fmt.Sprintf("input file %s", in.Path))
				}
				return apperrors.NewStorageError(fmt.Sprintf("cannot read %s", in.Path), err)
			}
			in.Data = data
			if in.Name == "" {
				in.Name = base
			}
		}
		if in.Name == "" {
			in.Name = filepath.Base(in.Path)
		}
		if in.Checksum == "" {
			in.Checksum = Checksum(in.Data)
		}
		inputs[i] = in

		logger.InfoContext(ctx, "input loaded",
			slog.String("name", in.Name),
			slog.Int("bytes", len(in.Data)),
			slog.String("checksum", in.Checksum))
		s.options.updateProgress(state.ID, stepState, (i+1)*100/len(state.Request.Inputs), "Loaded "+in.Name)
	}

	state.SetContext(ContextKeyInputs, inputs)
	return nil
}

// HourlyAnalysisStep runs the hourly analyses.
type HourlyAnalysisStep struct {
	BaseStage
	pipeline *production.Pipeline
	defaults production.Options
	options  *StageOptions
}

// NewHourlyAnalysisStep creates the analyze step of the hourly tool.
func NewHourlyAnalysisStep(pipeline *production.Pipeline, defaults production.Options, options *StageOptions) *HourlyAnalysisStep {
	return &HourlyAnalysisStep{
		BaseStage: NewBaseStage(StepIDAnalyze, StepNameAnalyze, []string{StepIDLoad}),
		pipeline:  pipeline,
		defaults:  defaults,
		options:   options,
	}
}

// Execute parses the export and stores the analysis context.
func (s *HourlyAnalysisStep) Execute(ctx context.Context, state *OperationState) error {
	inputs := state.Inputs()
	if len(inputs) == 0 {
		return NewValidationError(s.ID(), "no input loaded")
	}
	opts := s.defaults
	if state.Request.Hourly != nil {
		opts = *state.Request.Hourly
	}

	stepState := state.GetStage(s.ID())
	s.options.updateProgress(state.ID, stepState, 10, "Parsing hourly results")

	c, err := s.pipeline.Analyze(ctx, inputs[0].Data, inputs[0].Name, opts.Normalize())
	if err != nil {
		return err
	}

	if stepState != nil {
		stepState.SetMetadata("rows", c.Frame.Len())
		stepState.SetMetadata("available_analyses", c.Results.Available())
	}
	state.SetContext(ContextKeyResult, c)
	s.options.updateProgress(state.ID, stepState, 100, "Analyses completed")
	return nil
}

// TMYAnalysisStep analyses one TMY file.
type TMYAnalysisStep struct {
	BaseStage
	opts    meteo.Options
	options *StageOptions
}

// NewTMYAnalysisStep creates the analyze step of the TMY tool.
func NewTMYAnalysisStep(opts meteo.Options, options *StageOptions) *TMYAnalysisStep {
	return &TMYAnalysisStep{
		BaseStage: NewBaseStage(StepIDAnalyze, StepNameAnalyze, []string{StepIDLoad}),
		opts:      opts,
		options:   options,
	}
}

// Execute reads and analyses the TMY file.
func (s *TMYAnalysisStep) Execute(ctx context.Context, state *OperationState) error {
	inputs := state.Inputs()
	if len(inputs) == 0 {
		return NewValidationError(s.ID(), "no input loaded")
	}

	stepState := state.GetStage(s.ID())
	s.options.updateProgress(state.ID, stepState, 10, "Reading "+inputs[0].Name)

	a, err := meteo.AnalyzeTMY(ctx, inputs[0].Data, inputs[0].Name, s.opts)
	if err != nil {
		return err
	}
	s.options.metrics().RecordRows(ctx, a.Reader, a.Quality.Rows)

	if stepState != nil {
		stepState.SetMetadata("reader", a.Reader)
		stepState.SetMetadata("rows", a.Quality.Rows)
	}
	state.SetContext(ContextKeyResult, a)
	state.AddWarnings(a.Warnings...)
	s.options.updateProgress(state.ID, stepState, 100, "TMY analysis completed")
	return nil
}

// CompareStep compares two TMY files.
type CompareStep struct {
	BaseStage
	opts    meteo.CompareOptions
	options *StageOptions
}

// NewCompareStep creates the compare step of the comparison tool.
func NewCompareStep(opts meteo.CompareOptions, options *StageOptions) *CompareStep {
	return &CompareStep{
		BaseStage: NewBaseStage(StepIDCompare, StepNameCompare, []string{StepIDLoad}),
		opts:      opts,
		options:   options,
	}
}

// Execute aligns both files and computes the metrics.
func (s *CompareStep) Execute(ctx context.Context, state *OperationState) error {
	inputs := state.Inputs()
	if len(inputs) != 2 {
		return NewValidationError(s.ID(), "two inputs are required")
	}

	stepState := state.GetStage(s.ID())
	s.options.updateProgress(state.ID, stepState, 10, "Reading both files")

	c, err := meteo.CompareTMY(ctx, inputs[0].Data, inputs[0].Name, inputs[1].Data, inputs[1].Name, s.opts)
	if err != nil {
		return err
	}
	if c.A != nil {
		s.options.metrics().RecordRows(ctx, c.ReaderA, c.A.Quality.Rows)
	}
	if c.B != nil {
		s.options.metrics().RecordRows(ctx, c.ReaderB, c.B.Quality.Rows)
	}
	if c.Alert {
		s.options.metrics().RecordAlert(ctx)
	}

	if stepState != nil {
		stepState.SetMetadata("alignment", c.Alignment)
		stepState.SetMetadata("aligned_rows", c.AlignedRows)
	}
	state.SetContext(ContextKeyResult, c)
	state.SetContext(ContextKeyAlert, c.Alert)
	state.AddWarnings(c.Warnings...)
	s.options.updateProgress(state.ID, stepState, 100, "Comparison completed")
	return nil
}

// ExportStep writes the artefacts of a run.
type ExportStep struct {
	BaseStage
	exporter *exporter.Exporter
	paths    *config.Paths
	folder   string
	options  *StageOptions
}

// NewExportStep creates the export step writing under the tool folder.
func NewExportStep(dependsOn string, exp *exporter.Exporter, paths *config.Paths, folder string, options *StageOptions) *ExportStep {
	return &ExportStep{
		BaseStage: NewBaseStage(StepIDExport, StepNameExport, []string{dependsOn}),
		exporter:  exp,
		paths:     paths,
		folder:    folder,
		options:   options,
	}
}

// Execute writes reports, logs and figures.
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	stepState := state.GetStage(s.ID())

	dirs, err := s.paths.ToolDirsUnder(state.Request.OutputDir, s.folder)
	if err != nil {
		return apperrors.NewStorageError("cannot create output directories", err)
	}
	s.options.updateProgress(state.ID, stepState, 10, "Writing reports")

	var out exporter.Outputs
	switch result := state.Result().(type) {
	case *production.Context:
		out, err = s.exporter.ExportHourly(ctx, result, dirs)
	case *meteo.Analysis:
		out, err = s.exporter.ExportTMY(ctx, result, dirs)
	case *meteo.Comparison:
		out, err = s.exporter.ExportCompare(ctx, result, dirs)
	default:
		return NewFatalError(fmt.Sprintf("no exportable result for %s", state.Tool), nil)
	}
	if err != nil {
		return err
	}

	for _, f := range out.Files {
		s.options.metrics().RecordReport(ctx, f.Kind)
	}
	if stepState != nil {
		stepState.SetMetadata("files", len(out.Files))
		stepState.SetMetadata("run_dir", dirs.RunDir)
	}
	state.SetContext(ContextKeyOutputs, out)
	state.AddWarnings(out.Warnings...)
	s.options.updateProgress(state.ID, stepState, 100, fmt.Sprintf("%d files written", len(out.Files)))
	return nil
}

// PipelineDeps are the collaborators of the tool pipelines.
type PipelineDeps struct {
	Paths    *config.Paths
	Analysis config.AnalysisConfig
	Exporter *exporter.Exporter
	Hourly   *production.Pipeline
	Options  *StageOptions
}

// NewPipelines builds one step registry per tool.
func NewPipelines(deps PipelineDeps) map[string]*Registry {
	opts := deps.Options
	hourly := deps.Hourly
	if hourly == nil {
		var logger *slog.Logger
		if opts != nil {
			logger = opts.Logger
		}
		hourly = production.NewPipeline(logger, opts.metrics())
	}

	return map[string]*Registry{
		ToolHourly: NewRegistry().MustRegister(
			NewLoadInputsStep(1, opts),
			NewHourlyAnalysisStep(hourly, HourlyOptions(deps.Analysis), opts),
			NewExportStep(StepIDAnalyze, deps.Exporter, deps.Paths, exporter.ToolHourly, opts),
		),
		ToolTMY: NewRegistry().MustRegister(
			NewLoadInputsStep(1, opts),
			NewTMYAnalysisStep(MeteoOptions(deps.Analysis), opts),
			NewExportStep(StepIDAnalyze, deps.Exporter, deps.Paths, exporter.ToolTMY, opts),
		),
		ToolTMYCompare: NewRegistry().MustRegister(
			NewLoadInputsStep(2, opts),
			NewCompareStep(CompareOptions(deps.Analysis), opts),
			NewExportStep(StepIDCompare, deps.Exporter, deps.Paths, exporter.ToolTMYCompare, opts),
		),
	}
}
