package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"pvinsight/internal/infrastructure"
	"pvinsight/internal/notify"
)

var validate = validator.New()

// ManagerOptions carries the optional collaborators of a Manager.
type ManagerOptions struct {
	// Broadcaster is shared with the steps; one is created when nil.
	Broadcaster *StatusBroadcaster
	Publisher   EventPublisher
	Metrics     *infrastructure.BusinessMetrics
	Logger      *slog.Logger
}

// Manager runs tool pipelines
type Manager struct {
	pipelines   map[string]*Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	publisher   EventPublisher
	tracer      *OperationTracer
	logger      *slog.Logger

	// Active operations
	mu         sync.RWMutex
	operations map[string]*activeOperation
}

type activeOperation struct {
	state  *OperationState
	cancel context.CancelFunc
}

// NewManager creates a manager over one step registry per tool.
func NewManager(hub WebSocketHub, pipelines map[string]*Registry, cfg *Config, opts ManagerOptions) *Manager {
	if pipelines == nil {
		pipelines = make(map[string]*Registry)
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	broadcaster := opts.Broadcaster
	if broadcaster == nil {
		broadcaster = NewStatusBroadcaster(hub, logger)
	}

	return &Manager{
		pipelines:   pipelines,
		config:      cfg,
		hub:         hub,
		broadcaster: broadcaster,
		publisher:   opts.Publisher,
		tracer:      NewOperationTracer(opts.Metrics),
		logger:      infrastructure.WithComponent(logger, "operations"),
		operations:  make(map[string]*activeOperation),
	}
}

// Pipeline returns the step registry of a tool.
func (m *Manager) Pipeline(tool string) (*Registry, bool) {
	r, ok := m.pipelines[tool]
	return r, ok
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the pipeline of req.Tool. The response is returned even when
// the run fails so callers can report step states.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = infrastructure.NewRunID()
	}
	state := NewOperationState(req.ID)
	state.Tool = req.Tool
	state.Request = req

	if err := validate.Struct(req); err != nil {
		verr := NewValidationError("", err.Error())
		state.Fail(verr)
		return m.createResponse(state), verr
	}
	registry, ok := m.pipelines[req.Tool]
	if !ok {
		err := NewValidationError("", fmt.Sprintf("unknown tool %q", req.Tool))
		state.Fail(err)
		return m.createResponse(state), err
	}
	steps, err := registry.GetDependencyOrder()
	if err != nil {
		state.Fail(err)
		return m.createResponse(state), err
	}

	ctx = infrastructure.WithRunID(ctx, req.ID)
	if m.config.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := m.tracer.TraceRun(ctx, req.ID, req)
	logger := m.logger.With(slog.String("run_id", req.ID), slog.String("tool", req.Tool))

	m.storeOperation(state, cancel)
	defer m.removeOperation(req.ID)

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	m.broadcaster.CreateOperation(req.ID, req.Tool, steps)

	state.Start()
	m.broadcaster.StartOperation(req.ID)
	logger.InfoContext(ctx, "run started", slog.Int("steps", len(steps)), slog.Int("inputs", len(req.Inputs)))

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		err = NewCancellationError("")
		state.Cancel()
		m.broadcaster.CancelOperation(req.ID)
		logger.WarnContext(ctx, "run cancelled")
	case err != nil:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		logger.ErrorContext(ctx, "run failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(GetErrorType(err))))
	default:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, state.Alert(), fmt.Sprintf("%d files written", len(state.Outputs().Files)))
		logger.InfoContext(ctx, "run completed",
			slog.Duration("duration", state.Duration()),
			slog.Bool("alert", state.Alert()),
			slog.Int("warnings", len(state.Warnings())))
	}

	m.tracer.EndRun(ctx, span, state, err)
	m.publish(context.WithoutCancel(ctx), state)

	return m.createResponse(state), err
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if ctx.Err() != nil {
			m.skipRemaining(state, steps[i:], "Run cancelled")
			return NewCancellationError(step.ID())
		}

		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusSkipped {
			continue
		}

		if err := m.executeStage(ctx, state, step); err != nil {
			m.skipDependentStages(state, steps, step.ID())
			if !m.config.ContinueOnError {
				return err
			}
			m.logger.WarnContext(ctx, "step failed, continuing",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
		}
	}
	if state.HasFailures() {
		return NewExecutionError("", errors.New("one or more steps failed"), false)
	}
	return nil
}

// executeStage runs one step with its timeout and retry policy.
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("Dependencies not met: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), stepState.Message)
		return err
	}
	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(verr)
		m.broadcaster.FailStep(state.ID, step.ID(), verr)
		return verr
	}

	timeout := m.config.GetStageTimeout(step.ID())
	retry := m.config.RetryConfig
	maxAttempts := max(retry.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 1, "Step started")

		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		stageCtx, span := m.tracer.TraceStep(stageCtx, state.ID, state.Tool, step.ID(), attempt)
		start := infrastructure.Now()
		err := step.Execute(stageCtx, state)
		duration := infrastructure.Now().Sub(start)
		if err == nil && stageCtx.Err() != nil && ctx.Err() == nil {
			err = stageCtx.Err()
		}
		m.tracer.EndStep(stageCtx, span, state.Tool, step.ID(), duration, err)
		cancel()

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed")
			m.logger.InfoContext(ctx, "step completed",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewTimeoutError(step.ID(), timeout.String())
		}
		lastErr = WrapError(err, step.ID(), "step execution failed")

		m.logger.ErrorContext(ctx, "step failed",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", lastErr.Error()))

		if !IsRetryable(lastErr) || attempt >= maxAttempts || ctx.Err() != nil {
			break
		}

		delay := m.calculateRetryDelay(attempt, retry)
		m.logger.WarnContext(ctx, "step retry",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-infrastructure.Clock().After(delay):
		case <-ctx.Done():
			lastErr = WrapError(ctx.Err(), step.ID(), "run stopped during retry")
			attempt = maxAttempts
		}
	}

	stepState.Fail(lastErr)
	m.broadcaster.FailStep(state.ID, step.ID(), lastErr)
	return lastErr
}

// skipDependentStages marks every step depending on failedStepID as skipped.
func (m *Manager) skipDependentStages(state *OperationState, steps []Step, failedStepID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep != failedStepID {
				continue
			}
			stepState := state.GetStage(step.ID())
			if stepState != nil && stepState.GetStatus() == StepStatusPending {
				reason := fmt.Sprintf("Dependency %s failed", failedStepID)
				stepState.Skip(reason)
				m.broadcaster.SkipStep(state.ID, step.ID(), reason)
				m.skipDependentStages(state, steps, step.ID())
			}
			break
		}
	}
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if stepState := state.GetStage(step.ID()); stepState != nil && stepState.GetStatus() == StepStatusPending {
			stepState.Skip(reason)
		}
	}
}

// checkDependencies verifies that all dependencies completed
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep, "dependency not found")
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency not completed (status: %s)", status))
		}
	}
	return nil
}

// calculateRetryDelay returns the exponential backoff before attempt+1.
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:       snapshot.ID,
		Tool:     snapshot.Tool,
		Status:   snapshot.Status,
		Duration: state.Duration(),
		Steps:    snapshot.Steps,
		Outputs:  state.Outputs(),
		Alert:    state.Alert(),
		Warnings: state.Warnings(),
		Result:   state.Result(),
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}

// publish emits the run-completed event; failures are only logged.
func (m *Manager) publish(ctx context.Context, state *OperationState) {
	if m.publisher == nil {
		return
	}
	event := notify.RunEvent{
		RunID:      state.ID,
		Tool:       state.Tool,
		Status:     string(state.GetStatus()),
		Alert:      state.Alert(),
		FinishedAt: infrastructure.Now().UTC(),
	}
	for _, in := range state.Inputs() {
		event.SourceFiles = append(event.SourceFiles, notify.SourceFile{Name: in.Name, Checksum: in.Checksum})
	}
	if len(event.SourceFiles) == 0 {
		for _, in := range state.Request.Inputs {
			event.SourceFiles = append(event.SourceFiles, notify.SourceFile{Name: in.Name, Checksum: in.Checksum})
		}
	}
	for _, f := range state.Outputs().Files {
		event.Outputs = append(event.Outputs, f.Path)
	}
	if state.Error != nil {
		event.Error = state.Error.Error()
	}
	if err := m.publisher.PublishRun(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "run event publish failed",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()))
	}
}

// GetOperation returns a copy of the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, exists := m.operations[id]
	if !exists {
		return nil, ErrOperationNotFound
	}
	return op.state.Clone(), nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, op := range m.operations {
		operations = append(operations, op.state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	op, exists := m.operations[id]
	m.mu.RUnlock()
	if !exists {
		return ErrOperationNotFound
	}
	op.cancel()
	return nil
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = &activeOperation{state: state, cancel: cancel}
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
