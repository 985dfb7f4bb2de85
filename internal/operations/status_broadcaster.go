package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pvinsight/internal/infrastructure"
)

// StatusBroadcaster is the single authority for run status updates.
// It keeps the latest snapshot of every run and pushes full snapshots to the hub.
type StatusBroadcaster struct {
	mu         sync.RWMutex
	operations map[string]*OperationSnapshot
	hub        WebSocketHub
	logger     *slog.Logger
	updates    chan updateRequest
	stop       chan struct{}
	stopOnce   sync.Once
}

// OperationSnapshot is the complete state of a run at a point in time.
// This is the only structure sent to the frontend.
type OperationSnapshot struct {
	OperationID string         `json:"operation_id"`
	Tool        string         `json:"tool,omitempty"`
	Status      string         `json:"status"`       // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"`     // 0-100
	CurrentStep string         `json:"current_step"` // active step name
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Alert       bool           `json:"alert,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot is the state of a single step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`   // pending|running|completed|failed|skipped
	Progress int                    `json:"progress"` // 0-100
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

const (
	snapshotRunning = "running"
)

type updateRequest struct {
	operationID string
	updateFunc  func(*OperationSnapshot)
	done        chan struct{}
}

// NewStatusBroadcaster creates a broadcaster and starts its update loop.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		operations: make(map[string]*OperationSnapshot),
		hub:        hub,
		logger:     infrastructure.WithComponent(logger, "status_broadcaster"),
		updates:    make(chan updateRequest, 100),
		stop:       make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies updates one at a time
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func isTerminal(status string) bool {
	switch OperationStatusValue(status) {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	now := infrastructure.Now()
	snapshot, exists := sb.operations[req.operationID]
	if !exists {
		snapshot = &OperationSnapshot{
			OperationID: req.operationID,
			Status:      string(OperationStatusPending),
			StartedAt:   now,
			UpdatedAt:   now,
			Steps:       []StepSnapshot{},
		}
		sb.operations[req.operationID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = now

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		completed := now
		snapshot.CompletedAt = &completed
	}

	out := snapshot.copy()
	sb.mu.Unlock()

	sb.broadcast(out)
}

func (sb *StatusBroadcaster) broadcast(snapshot *OperationSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
	)

	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.OperationID, snapshot.Status, snapshot)
}

// UpdateStatus applies updateFunc to the snapshot of a run and broadcasts it.
// It is a no-op once the broadcaster is stopped.
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*OperationSnapshot)) {
	req := updateRequest{
		operationID: operationID,
		updateFunc:  updateFunc,
		done:        make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateOperation initializes a run with its steps.
func (sb *StatusBroadcaster) CreateOperation(operationID, tool string, steps []Step) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Tool = tool
		snapshot.Status = string(OperationStatusPending)
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = StepSnapshot{
				ID:     step.ID(),
				Name:   step.Name(),
				Status: string(StepStatusPending),
			}
		}
		snapshot.Message = "Run created"
	})
}

// StartOperation marks a run as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusRunning)
		snapshot.Message = "Run started"
	})
}

// UpdateStepProgress updates a step's progress
func (sb *StatusBroadcaster) UpdateStepProgress(operationID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(operationID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates a step's progress and metadata.
// Progress of a running step never goes backwards.
func (sb *StatusBroadcaster) UpdateStepWithMetadata(operationID, stepID string, progress int, message string, metadata map[string]interface{}) {
	progress = min(max(progress, 0), 100)
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		step := snapshot.step(stepID)
		if step == nil {
			snapshot.Steps = append(snapshot.Steps, StepSnapshot{ID: stepID, Name: stepID, Status: string(StepStatusPending)})
			step = &snapshot.Steps[len(snapshot.Steps)-1]
		}

		if !(progress < step.Progress && step.Status == snapshotRunning) {
			step.Progress = progress
		}
		step.Message = message
		if metadata != nil {
			step.Metadata = metadata
		}
		if progress >= 100 {
			step.Status = string(StepStatusCompleted)
		} else {
			step.Status = snapshotRunning
			snapshot.CurrentStep = step.Name
		}
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(operationID, stepID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := snapshot.step(stepID); step != nil {
			step.Status = string(StepStatusCompleted)
			step.Progress = 100
			step.Message = message
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(operationID, stepID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := snapshot.step(stepID); step != nil {
			step.Status = string(StepStatusFailed)
			step.Error = err.Error()
		}
	})
}

// SkipStep marks a step as skipped
func (sb *StatusBroadcaster) SkipStep(operationID, stepID, reason string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		if step := snapshot.step(stepID); step != nil {
			step.Status = string(StepStatusSkipped)
			step.Message = reason
		}
	})
}

// CompleteOperation marks a run as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID string, alert bool, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCompleted)
		snapshot.Progress = 100
		snapshot.CurrentStep = ""
		snapshot.Alert = alert
		snapshot.Message = message
		for i := range snapshot.Steps {
			if snapshot.Steps[i].Status == snapshotRunning || snapshot.Steps[i].Status == string(StepStatusPending) {
				snapshot.Steps[i].Status = string(StepStatusCompleted)
				snapshot.Steps[i].Progress = 100
			}
		}
	})
}

// FailOperation marks a run as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusFailed)
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelOperation marks a run as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled"
	})
}

// GetSnapshot returns a copy of the snapshot of a run
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (*OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.operations[operationID]
	if !exists {
		return nil, false
	}
	return snapshot.copy(), true
}

// GetAllSnapshots returns copies of all snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*OperationSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*OperationSnapshot, 0, len(sb.operations))
	for _, snapshot := range sb.operations {
		snapshots = append(snapshots, snapshot.copy())
	}
	return snapshots
}

// CleanupOldOperations drops finished runs older than maxAge.
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := infrastructure.Now()
	removed := 0
	for id, snapshot := range sb.operations {
		if !isTerminal(snapshot.Status) || snapshot.CompletedAt == nil {
			continue
		}
		if age := now.Sub(*snapshot.CompletedAt); age > maxAge {
			delete(sb.operations, id)
			removed++
			sb.logger.DebugContext(ctx, "cleaned up old operation",
				slog.String("operation_id", id),
				slog.String("status", snapshot.Status),
				slog.Duration("age", age),
			)
		}
	}
	return removed
}

// Stop shuts down the update loop
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func (s *OperationSnapshot) step(id string) *StepSnapshot {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i]
		}
	}
	return nil
}

func (s *OperationSnapshot) copy() *OperationSnapshot {
	out := *s
	out.Steps = append([]StepSnapshot(nil), s.Steps...)
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}
