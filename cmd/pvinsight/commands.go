package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"pvinsight/internal/app"
	"pvinsight/internal/batch"
	"pvinsight/internal/config"
	"pvinsight/internal/exporter"
	"pvinsight/internal/mcp"
	"pvinsight/internal/operations"
)

// runSummary is what the analysis commands print.
type runSummary struct {
	RunID    string                          `json:"run_id"`
	Tool     string                          `json:"tool"`
	Status   operations.OperationStatusValue `json:"status"`
	Duration string                          `json:"duration"`
	Alert    bool                            `json:"alert"`
	Warnings []string                        `json:"warnings,omitempty"`
	Outputs  []exporter.OutputFile           `json:"outputs"`
	Error    string                          `json:"error,omitempty"`
}

func newFlagSet(e *env, name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("pvinsight "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	configFile := fs.String("config", "", "configuration file (default: config.yaml or configs/config.yaml)")
	return fs, configFile
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

// isSet reports whether the flag was given on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newApp builds the application with console logs on stderr so stdout
// only carries command output.
func newApp(e *env, configFile string, server bool, mutate func(*config.Config)) (*app.Application, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	return app.New(app.Options{Config: cfg, Console: e.stderr, Server: server})
}

func stopApp(a *app.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(ctx)
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "serve")
	port := fs.Int("port", 0, "listen port (overrides configuration)")
	open := fs.Bool("open", false, "open the browser once the server is up")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	a, err := app.New(app.Options{Config: cfg, Console: e.stderr, Server: true, OpenBrowser: *open})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// analysisFlags are shared by hourly, tmy and compare.
type analysisFlags struct {
	out      *string
	asJSON   *bool
	noPDF    *bool
	noStamps *bool
}

func addAnalysisFlags(fs *flag.FlagSet) analysisFlags {
	return analysisFlags{
		out:      fs.String("out", "", "outputs directory (overrides configuration)"),
		asJSON:   fs.Bool("json", false, "print the run summary as JSON"),
		noPDF:    fs.Bool("no-pdf", false, "skip PDF reports"),
		noStamps: fs.Bool("no-timestamp", false, "do not suffix output names with a timestamp"),
	}
}

func (f analysisFlags) apply(cfg *config.Config) {
	if *f.noPDF {
		cfg.PDF.Enabled = false
	}
	if *f.noStamps {
		cfg.Analysis.TimestampOutputs = false
	}
}

func runHourly(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "hourly")
	file := fs.String("file", "", "PVSyst hourly results CSV (required)")
	threshold := fs.Float64("threshold", 0, "threshold value in the unit of -column")
	column := fs.String("column", "", "threshold column (default from configuration, E_Grid)")
	night := fs.Bool("night", true, "night disconnection: clamp negative values to zero")
	capacity := fs.Float64("capacity", 0, "grid injection capacity in kW; 0 disables load factor analyses")
	af := addAnalysisFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	a, err := newApp(e, *configFile, false, af.apply)
	if err != nil {
		return err
	}
	defer stopApp(a)

	opts := operations.HourlyOptions(a.Config.Analysis)
	if isSet(fs, "threshold") {
		opts.ThresholdValue = *threshold
	}
	if *column != "" {
		opts.ThresholdColumn = *column
	}
	if isSet(fs, "night") {
		opts.NightDisconnection = *night
	}
	if *capacity > 0 {
		c := *capacity
		opts.GridCapacityKW = &c
	}
	opts = opts.Normalize()

	return execute(ctx, e, a, af, operations.OperationRequest{
		Tool:      operations.ToolHourly,
		Inputs:    []operations.Input{{Path: *file}},
		Hourly:    &opts,
		OutputDir: *af.out,
	})
}

func runTMY(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "tmy")
	file := fs.String("file", "", "PVSyst or Solargis TMY file (required)")
	af := addAnalysisFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	a, err := newApp(e, *configFile, false, af.apply)
	if err != nil {
		return err
	}
	defer stopApp(a)

	return execute(ctx, e, a, af, operations.OperationRequest{
		Tool:      operations.ToolTMY,
		Inputs:    []operations.Input{{Path: *file}},
		OutputDir: *af.out,
	})
}

func runCompare(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "compare")
	fileA := fs.String("a", "", "reference TMY file (required)")
	fileB := fs.String("b", "", "compared TMY file (required)")
	af := addAnalysisFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *fileA == "" || *fileB == "" {
		return fmt.Errorf("%w: -a and -b are required", errUsage)
	}

	a, err := newApp(e, *configFile, false, af.apply)
	if err != nil {
		return err
	}
	defer stopApp(a)

	return execute(ctx, e, a, af, operations.OperationRequest{
		Tool:      operations.ToolTMYCompare,
		Inputs:    []operations.Input{{Path: *fileA}, {Path: *fileB}},
		OutputDir: *af.out,
	})
}

func execute(ctx context.Context, e *env, a *app.Application, af analysisFlags, req operations.OperationRequest) error {
	resp, err := a.Execute(ctx, req)
	if resp == nil {
		return err
	}

	summary := runSummary{
		RunID:    resp.ID,
		Tool:     resp.Tool,
		Status:   resp.Status,
		Duration: resp.Duration.Round(time.Millisecond).String(),
		Alert:    resp.Alert,
		Warnings: resp.Warnings,
		Outputs:  resp.Outputs.Files,
		Error:    resp.Error,
	}
	if *af.asJSON {
		if encErr := exporter.EncodeJSON(e.stdout, summary); encErr != nil {
			return errors.Join(err, encErr)
		}
	} else {
		printSummary(e.stdout, summary)
	}
	return err
}

func printSummary(w io.Writer, s runSummary) {
	fmt.Fprintf(w, "%s %s %s in %s\n", s.Tool, s.RunID, s.Status, s.Duration)
	if s.Alert {
		fmt.Fprintln(w, "ALERT: datasets differ beyond the configured tolerance")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range s.Outputs {
		fmt.Fprintf(tw, "  %s\t%s\n", f.Kind, f.Path)
	}
	_ = tw.Flush()
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func runBatch(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "batch")
	manifestPath := fs.String("manifest", "", "HCL batch manifest (required)")
	parallelism := fs.Int("parallelism", 0, "concurrent runs when the manifest does not set parallelism")
	asJSON := fs.Bool("json", false, "print the batch report as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *manifestPath == "" {
		return fmt.Errorf("%w: -manifest is required", errUsage)
	}

	a, err := newApp(e, *configFile, false, nil)
	if err != nil {
		return err
	}
	defer stopApp(a)

	m, err := batch.LoadManifest(ctx, *manifestPath, a.Logger)
	if err != nil {
		return err
	}

	workers := *parallelism
	if workers <= 0 {
		workers = a.Config.Jobs.Workers
	}
	runner := batch.NewRunner(a, batch.Options{
		Parallelism: workers,
		Defaults:    operations.HourlyOptions(a.Config.Analysis),
		Logger:      a.Logger,
		Progress: func(p *operations.ProgressTracker, r batch.RunResult) {
			if !*asJSON {
				fmt.Fprintf(e.stdout, "[%s] %s %s %s\n", p.String(), r.Name, r.Tool, r.Status)
			}
		},
	})

	report, err := runner.Run(ctx, m)
	if report == nil {
		return err
	}
	if *asJSON {
		if encErr := exporter.EncodeJSON(e.stdout, report); encErr != nil {
			return errors.Join(err, encErr)
		}
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTOOL\tSTATUS\tALERT\tFILES\tERROR")
	for _, r := range report.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n", r.Name, r.Tool, r.Status, r.Alert, len(r.Outputs), r.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(e.stdout, "%d succeeded, %d failed in %s\n", report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
	return err
}

func runMCP(ctx context.Context, e *env, args []string) error {
	fs, configFile := newFlagSet(e, "mcp")
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := newApp(e, *configFile, false, nil)
	if err != nil {
		return err
	}
	defer stopApp(a)

	server, err := mcp.NewServer(a, mcp.Options{
		Name:         a.Config.MCP.Name,
		Version:      config.AppVersion,
		AllowedRoots: a.Config.MCP.AllowedRoots,
		Defaults:     operations.HourlyOptions(a.Config.Analysis),
		Logger:       a.Logger,
	})
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

func runTools(_ context.Context, e *env, args []string) error {
	fs, _ := newFlagSet(e, "tools")
	asJSON := fs.Bool("json", false, "print the catalogue as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	tools := operations.Tools()
	if *asJSON {
		return exporter.EncodeJSON(e.stdout, tools)
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINPUTS\tTITLE")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t.ID, t.Inputs, t.Title)
	}
	return tw.Flush()
}
