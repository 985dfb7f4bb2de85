package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvinsight/internal/infrastructure"
)

func waitForStatus(t *testing.T, q *JobQueue, id string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetJob(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func newTestQueue(t *testing.T, analyze func(ctx context.Context, state *OperationState) error, opts JobQueueOptions) *JobQueue {
	t.Helper()
	registry, _ := threeStepPipeline(analyze)
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	t.Cleanup(m.GetBroadcaster().Stop)
	return NewJobQueue(NewMemoryJobStore(), m, opts)
}

func TestJobQueue_Lifecycle(t *testing.T) {
	q := newTestQueue(t, func(_ context.Context, state *OperationState) error {
		state.SetContext(ContextKeyAlert, true)
		return nil
	}, JobQueueOptions{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(time.Second)

	job, err := q.Enqueue(infrastructure.WithTraceID(ctx, "trace-1"), testRequest(ToolTMY))
	require.NoError(t, err)
	assert.Len(t, job.ID, 26)
	assert.Equal(t, "trace-1", job.Metadata["trace_id"])

	done := waitForStatus(t, q, job.ID, JobStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.True(t, done.Alert)
	require.NotNil(t, done.Response)
	assert.Equal(t, OperationStatusCompleted, done.Response.Status)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	jobs, err := q.ListJobs(JobFilter{Tool: ToolTMY})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	assert.ErrorIs(t, q.CancelJob(job.ID), ErrJobFinished)
	require.NoError(t, q.DeleteJob(job.ID))
	_, err = q.GetJob(job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobQueue_FailedJob(t *testing.T) {
	q := newTestQueue(t, func(context.Context, *OperationState) error {
		return NewFatalError("bad input", nil)
	}, JobQueueOptions{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(time.Second)

	job, err := q.Enqueue(ctx, testRequest(ToolTMY))
	require.NoError(t, err)

	failed := waitForStatus(t, q, job.ID, JobStatusFailed)
	assert.Contains(t, failed.Error, "bad input")
	require.NotNil(t, failed.Response)
	assert.Equal(t, StepStatusSkipped, failed.Response.Steps[StepIDExport].Status)
}

func TestJobQueue_CancelRunningJob(t *testing.T) {
	started := make(chan struct{}, 1)
	q := newTestQueue(t, func(ctx context.Context, _ *OperationState) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, JobQueueOptions{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(time.Second)

	job, err := q.Enqueue(ctx, testRequest(ToolTMY))
	require.NoError(t, err)
	<-started

	require.NoError(t, q.CancelJob(job.ID))
	cancelled := waitForStatus(t, q, job.ID, JobStatusCancelled)
	assert.NotNil(t, cancelled.CompletedAt)
}

func TestJobQueue_CancelPendingJob(t *testing.T) {
	q := newTestQueue(t, nil, JobQueueOptions{Workers: 1, QueueSize: 4})

	// Not started: the job stays pending.
	job, err := q.Enqueue(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(job.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(time.Second)

	time.Sleep(50 * time.Millisecond)
	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, got.Status)
	assert.Nil(t, got.Response, "cancelled job never ran")
}

func TestJobQueue_CancelledJobIsNotStarted(t *testing.T) {
	q := newTestQueue(t, nil, JobQueueOptions{Workers: 1, QueueSize: 4})

	_, err := q.Enqueue(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	queued := <-q.jobs

	require.NoError(t, q.CancelJob(queued.ID))
	q.processJob(context.Background(), queued, q.logger)

	got, err := q.GetJob(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.Response)
}

func TestJobQueue_CancelJustStartedJob(t *testing.T) {
	q := newTestQueue(t, nil, JobQueueOptions{Workers: 1, QueueSize: 4})

	_, err := q.Enqueue(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	queued := <-q.jobs

	// running but not yet registered with the manager
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, q.markRunning(queued, cancel))
	assert.False(t, q.markRunning(queued, cancel), "a running job cannot start twice")

	require.NoError(t, q.CancelJob(queued.ID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestJobQueue_QueueFull(t *testing.T) {
	q := newTestQueue(t, nil, JobQueueOptions{Workers: 1, QueueSize: 1})

	_, err := q.Enqueue(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), testRequest(ToolTMY))
	assert.ErrorIs(t, err, ErrQueueFull)

	failed, err := q.ListJobs(JobFilter{Status: JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ErrQueueFull.Error(), failed[0].Error)

	stats := q.Stats()
	assert.Equal(t, 1, stats["queue_size"])
	assert.Equal(t, 1, stats["queue_cap"])
}

func TestJobQueue_UnknownTool(t *testing.T) {
	q := newTestQueue(t, nil, JobQueueOptions{})
	_, err := q.Enqueue(context.Background(), testRequest(ToolHourly))
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
}

func TestJobQueue_CleanupOldJobs(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	defer infrastructure.SetClock(clock)()

	store := NewMemoryJobStore()
	registry, _ := threeStepPipeline(nil)
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()
	q := NewJobQueue(store, m, JobQueueOptions{Retention: time.Hour})

	require.NoError(t, store.CreateJob(&Job{ID: "old", Status: JobStatusCompleted, CreatedAt: clock.Now()}))
	require.NoError(t, store.CreateJob(&Job{ID: "pending", Status: JobStatusPending, CreatedAt: clock.Now()}))
	clock.Advance(2 * time.Hour)
	require.NoError(t, store.CreateJob(&Job{ID: "recent", Status: JobStatusFailed, CreatedAt: clock.Now()}))

	assert.Equal(t, 1, q.CleanupOldJobs(context.Background()))
	_, err := store.GetJob("old")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.Equal(t, map[string]int{
		"total_jobs": 2, "pending": 1, "running": 0, "completed": 0, "failed": 1, "cancelled": 0,
	}, store.GetStats())
}

func TestMemoryJobStore_ListOrderAndLimit(t *testing.T) {
	store := NewMemoryJobStore()
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateJob(&Job{ID: id, Tool: ToolTMY, Status: JobStatusCompleted, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	assert.Error(t, store.CreateJob(&Job{ID: "a"}))

	jobs, err := store.ListJobs(JobFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)

	jobs, _ = store.ListJobs(JobFilter{Since: base.Add(90 * time.Second)})
	assert.Len(t, jobs, 1)

	got, _ := store.GetJob("a")
	got.Status = JobStatusFailed
	again, _ := store.GetJob("a")
	assert.Equal(t, JobStatusCompleted, again.Status, "store returns copies")
}
