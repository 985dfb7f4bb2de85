package http

import (
	"context"

	"pvinsight/internal/operations"
)

// JobService is the job queue as seen by the handlers.
type JobService interface {
	Enqueue(ctx context.Context, req operations.OperationRequest) (*operations.Job, error)
	GetJob(id string) (*operations.Job, error)
	CancelJob(id string) error
	DeleteJob(id string) error
	ListJobs(filter operations.JobFilter) ([]*operations.Job, error)
	Stats() map[string]interface{}
}

// StatsProvider reports component statistics for the health endpoint.
type StatsProvider interface {
	Stats() map[string]interface{}
}

var _ JobService = (*operations.JobQueue)(nil)
