// Package operations runs the PVInsight tools as step pipelines.
//
// Every tool is a Registry of steps executed in dependency order:
//
//	hourly_results_analysis  load -> analyze -> export
//	tmy_analysis             load -> analyze -> export
//	tmy_compare              load -> compare -> export
//
// Manager executes one pipeline with per-step timeouts and retries, keeps
// an OperationState per run and reports progress through the
// StatusBroadcaster, which serialises snapshots to the websocket hub.
// Parsing and validation failures are never retried.
//
// JobQueue runs requests asynchronously on a bounded worker pool and keeps
// their outcome in a JobStore:
//
//	pipelines := operations.NewPipelines(deps)
//	manager := operations.NewManager(hub, pipelines, operations.ConfigFromJobs(cfg.Jobs), opts)
//	queue := operations.NewJobQueue(operations.NewMemoryJobStore(), manager, queueOpts)
//	queue.Start(ctx)
//	job, err := queue.Enqueue(ctx, req)
package operations
