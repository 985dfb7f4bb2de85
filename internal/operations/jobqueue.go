package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pvinsight/internal/infrastructure"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

var (
	// ErrJobNotFound is returned for unknown job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull is returned when no queue slot is free
	ErrQueueFull = errors.New("job queue is full")
	// ErrJobFinished is returned when cancelling a finished job
	ErrJobFinished = errors.New("job already finished")
)

// Job is one asynchronous tool run. Its ID is also the run id.
type Job struct {
	ID          string                 `json:"id"`
	Tool        string                 `json:"tool"`
	Status      JobStatus              `json:"status"`
	Progress    int                    `json:"progress"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Alert       bool                   `json:"alert,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Request     *OperationRequest      `json:"-"`
	Response    *OperationResponse     `json:"response,omitempty"`
}

func (j *Job) copy() *Job {
	out := *j
	if j.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// JobStore persists jobs
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
	CleanupOldJobs(olderThan time.Duration) (int, error)
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Tool   string
	Since  time.Time
	Limit  int
}

// JobQueueOptions sizes the queue.
type JobQueueOptions struct {
	Workers   int
	QueueSize int
	// Retention is how long finished jobs are kept; 0 keeps them forever.
	Retention time.Duration
	Metrics   *infrastructure.BusinessMetrics
	Logger    *slog.Logger
}

// JobQueue runs jobs on a bounded worker pool
type JobQueue struct {
	mu        sync.RWMutex
	jobs      chan *Job
	workers   int
	retention time.Duration
	wg        sync.WaitGroup
	store     JobStore
	manager   *Manager
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
	shutdown  chan struct{}
	stopOnce  sync.Once
	active    map[string]*Job
	// transition serialises status changes between CancelJob and the
	// pending -> running move of a worker.
	transition sync.Mutex
	cancels    map[string]context.CancelFunc
}

// NewJobQueue creates a new job queue
func NewJobQueue(store JobStore, manager *Manager, opts JobQueueOptions) *JobQueue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 2
	}
	if store == nil {
		store = NewMemoryJobStore()
	}

	return &JobQueue{
		jobs:      make(chan *Job, opts.QueueSize),
		workers:   opts.Workers,
		retention: opts.Retention,
		store:     store,
		manager:   manager,
		metrics:   opts.Metrics,
		logger:    infrastructure.WithComponent(opts.Logger, "jobqueue"),
		shutdown:  make(chan struct{}),
		active:    make(map[string]*Job),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.InfoContext(ctx, "starting job queue",
		slog.Int("workers", q.workers),
		slog.Int("queue_size", cap(q.jobs)))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	if q.retention > 0 {
		q.wg.Add(1)
		go q.cleanupLoop(ctx)
	}
}

// Stop signals the workers and waits for running jobs up to timeout
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	q.stopOnce.Do(func() { close(q.shutdown) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue stores a pending job for req and queues it.
func (q *JobQueue) Enqueue(ctx context.Context, req OperationRequest) (*Job, error) {
	registry, ok := q.manager.Pipeline(req.Tool)
	if !ok {
		return nil, NewValidationError("", fmt.Sprintf("unknown tool %q", req.Tool))
	}
	if req.ID == "" {
		req.ID = infrastructure.NewRunID()
	}

	job := &Job{
		ID:        req.ID,
		Tool:      req.Tool,
		Status:    JobStatusPending,
		Message:   "Queued",
		CreatedAt: infrastructure.Now(),
		Metadata:  map[string]interface{}{},
		Request:   &req,
	}
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		job.Metadata["trace_id"] = traceID
	}
	for _, in := range req.Inputs {
		job.Metadata["input_"+in.Name] = in.Checksum
	}

	if err := q.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if steps, err := registry.GetDependencyOrder(); err == nil {
		q.manager.GetBroadcaster().CreateOperation(job.ID, job.Tool, steps)
	}

	select {
	case q.jobs <- job.copy():
		q.logger.InfoContext(ctx, "job enqueued",
			slog.String("job_id", job.ID),
			slog.String("tool", job.Tool))
		return job.copy(), nil
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		now := infrastructure.Now()
		job.CompletedAt = &now
		if err := q.store.UpdateJob(job); err != nil {
			q.logger.Error("failed to update job", slog.String("error", err.Error()))
		}
		q.manager.GetBroadcaster().FailOperation(job.ID, ErrQueueFull)
		return nil, ErrQueueFull
	}
}

// GetJob returns a job; running jobs carry live progress from the broadcaster.
func (q *JobQueue) GetJob(id string) (*Job, error) {
	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if job.Status == JobStatusRunning {
		if snapshot, ok := q.manager.GetBroadcaster().GetSnapshot(id); ok {
			job.Progress = snapshot.Progress
			if snapshot.CurrentStep != "" {
				job.Message = snapshot.CurrentStep
			}
		}
	}
	return job, nil
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	q.transition.Lock()
	defer q.transition.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}

	switch job.Status {
	case JobStatusPending:
		job.Status = JobStatusCancelled
		job.Message = "Cancelled before start"
		now := infrastructure.Now()
		job.CompletedAt = &now
		q.manager.GetBroadcaster().CancelOperation(id)
		return q.store.UpdateJob(job)
	case JobStatusRunning:
		q.mu.RLock()
		cancel, ok := q.cancels[id]
		q.mu.RUnlock()
		if ok {
			cancel()
			return nil
		}
		return q.manager.CancelOperation(id)
	default:
		return fmt.Errorf("job %s (status: %s): %w", id, job.Status, ErrJobFinished)
	}
}

// DeleteJob removes a job; a running job is cancelled first.
func (q *JobQueue) DeleteJob(id string) error {
	if err := q.CancelJob(id); err != nil && !errors.Is(err, ErrJobFinished) && !errors.Is(err, ErrOperationNotFound) {
		return err
	}
	return q.store.DeleteJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob runs the pipeline of one job
func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A job cancelled while queued is dropped.
	if !q.markRunning(job, cancel) {
		return
	}

	if traceID, ok := job.Metadata["trace_id"].(string); ok {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	logger = logger.With(slog.String("job_id", job.ID), slog.String("tool", job.Tool))

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()
	q.metrics.RecordActiveJob(ctx, job.Tool, 1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))
			q.finish(job, nil, fmt.Errorf("job processing panicked: %v", r), logger)
		}
		q.metrics.RecordActiveJob(ctx, job.Tool, -1)
		q.mu.Lock()
		delete(q.active, job.ID)
		delete(q.cancels, job.ID)
		q.mu.Unlock()
	}()

	logger.InfoContext(ctx, "processing job started")
	resp, err := q.manager.Execute(ctx, *job.Request)
	q.finish(job, resp, err, logger)
}

// markRunning moves a pending job to running and registers cancel for it.
// It returns false when the job is no longer pending.
func (q *JobQueue) markRunning(job *Job, cancel context.CancelFunc) bool {
	q.transition.Lock()
	defer q.transition.Unlock()

	stored, err := q.store.GetJob(job.ID)
	if err != nil || stored.Status != JobStatusPending {
		return false
	}

	now := infrastructure.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.Message = "Running"
	if err := q.store.UpdateJob(job); err != nil {
		q.logger.Error("failed to update job status",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}

	q.mu.Lock()
	q.cancels[job.ID] = cancel
	q.mu.Unlock()
	return true
}

func (q *JobQueue) finish(job *Job, resp *OperationResponse, err error, logger *slog.Logger) {
	now := infrastructure.Now()
	job.CompletedAt = &now
	job.Response = resp
	if resp != nil {
		job.Alert = resp.Alert
	}

	switch {
	case err == nil:
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = "Completed"
		logger.Info("processing job completed")
	case GetErrorType(err) == ErrorTypeCancellation:
		job.Status = JobStatusCancelled
		job.Message = "Cancelled"
		job.Error = err.Error()
		logger.Warn("job cancelled")
	default:
		job.Status = JobStatusFailed
		job.Message = "Failed"
		job.Error = err.Error()
		logger.Error("job failed", slog.String("error", err.Error()))
	}

	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job", slog.String("error", err.Error()))
	}
}

func (q *JobQueue) cleanupLoop(ctx context.Context) {
	defer q.wg.Done()

	interval := q.retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := infrastructure.Clock().NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case <-ticker.Chan():
			q.CleanupOldJobs(ctx)
		}
	}
}

// CleanupOldJobs drops finished jobs and snapshots older than the retention.
func (q *JobQueue) CleanupOldJobs(ctx context.Context) int {
	if q.retention <= 0 {
		return 0
	}
	removed, err := q.store.CleanupOldJobs(q.retention)
	if err != nil {
		q.logger.ErrorContext(ctx, "job cleanup failed", slog.String("error", err.Error()))
	}
	q.manager.GetBroadcaster().CleanupOldOperations(ctx, q.retention)
	if removed > 0 {
		q.logger.InfoContext(ctx, "old jobs removed", slog.Int("count", removed))
	}
	return removed
}

// Stats returns queue statistics
func (q *JobQueue) Stats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}
