package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

// ErrRunsFailed is returned by Run when at least one run did not complete.
var ErrRunsFailed = errors.New("batch runs failed")

// Executor runs one tool request to completion.
type Executor interface {
	Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
}

// Options configure a Runner.
type Options struct {
	// Parallelism caps concurrent runs when the manifest does not set it.
	Parallelism int
	// Defaults fill hourly options the manifest leaves unset.
	Defaults production.Options
	Logger   *slog.Logger
	// Progress, when set, is called after every finished run. Calls are
	// serialised.
	Progress func(p *operations.ProgressTracker, r RunResult)
}

// RunResult is the outcome of one manifest entry.
type RunResult struct {
	Name     string                          `json:"name"`
	Tool     string                          `json:"tool"`
	RunID    string                          `json:"run_id"`
	Status   operations.OperationStatusValue `json:"status"`
	Alert    bool                            `json:"alert,omitempty"`
	Outputs  []exporter.OutputFile           `json:"outputs,omitempty"`
	Duration time.Duration                   `json:"duration"`
	Error    string                          `json:"error,omitempty"`
}

// Report summarises a batch.
type Report struct {
	Runs      []RunResult   `json:"runs"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Runner fans the runs of a manifest out over a bounded number of
// goroutines. A failing run does not stop the others.
type Runner struct {
	executor Executor
	opts     Options
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(executor Executor, opts Options) *Runner {
	if executor == nil {
		panic("batch: nil executor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		executor: executor,
		opts:     opts,
		logger:   logger.With(slog.String("component", "batch")),
	}
}

// Run executes every entry of m. The report lists results in manifest
// order. The error is ErrRunsFailed (wrapped) when any run failed, or the
// context error when the batch was cancelled.
func (r *Runner) Run(ctx context.Context, m *Manifest) (*Report, error) {
	entries := m.Entries(r.opts.Defaults)
	parallelism := m.Parallelism
	if parallelism <= 0 {
		parallelism = r.opts.Parallelism
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	start := infrastructure.Now()
	tracker := operations.NewProgressTracker("batch", len(entries))
	results := make([]RunResult, len(entries))
	var progressMu sync.Mutex

	r.logger.InfoContext(ctx, "batch started",
		slog.Int("runs", len(entries)),
		slog.Int("parallelism", parallelism),
		slog.String("output_dir", m.ResolvedOutputDir()))

	g := new(errgroup.Group)
	g.SetLimit(parallelism)
	for i, entry := range entries {
		if ctx.Err() != nil {
			results[i] = RunResult{
				Name:   entry.Name,
				Tool:   entry.Request.Tool,
				Status: operations.OperationStatusCancelled,
				Error:  ctx.Err().Error(),
			}
			continue
		}
		g.Go(func() error {
			res := r.runOne(ctx, entry)
			results[i] = res
			tracker.Increment(entry.Name, res.Status != operations.OperationStatusCompleted)
			if r.opts.Progress != nil {
				progressMu.Lock()
				r.opts.Progress(tracker, res)
				progressMu.Unlock()
			}
			r.logger.InfoContext(ctx, "batch progress",
				slog.String("progress", tracker.String()),
				slog.String("eta", tracker.GetETA()))
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Runs: results, Duration: infrastructure.Now().Sub(start)}
	for _, res := range results {
		if res.Status == operations.OperationStatusCompleted {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	r.logger.InfoContext(ctx, "batch finished",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.String("elapsed", tracker.GetElapsedTimeString()))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrRunsFailed, report.Failed, len(results))
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, entry Entry) RunResult {
	res := RunResult{Name: entry.Name, Tool: entry.Request.Tool}
	logger := r.logger.With(slog.String("run", entry.Name), slog.String("tool", entry.Request.Tool))

	resp, err := r.executor.Execute(ctx, entry.Request)
	if resp != nil {
		res.RunID = resp.ID
		res.Status = resp.Status
		res.Alert = resp.Alert
		res.Outputs = resp.Outputs.Files
		res.Duration = resp.Duration
	}
	if err != nil {
		if res.Status == "" || res.Status == operations.OperationStatusCompleted {
			res.Status = operations.OperationStatusFailed
		}
		res.Error = err.Error()
		logger.ErrorContext(ctx, "batch run failed", slog.String("error", err.Error()))
		return res
	}
	logger.InfoContext(ctx, "batch run completed",
		slog.String("run_id", res.RunID),
		slog.Bool("alert", res.Alert),
		slog.Int("files", len(res.Outputs)))
	return res
}
