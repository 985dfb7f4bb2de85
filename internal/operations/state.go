package operations

import (
	"sync"
	"time"

	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState represents the complete state of one tool run
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Tool      string               `json:"tool"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// Request is the run request; steps read inputs and options from it.
	Request OperationRequest `json:"-"`

	// Context passes data between steps
	Context map[string]interface{} `json:"-"`

	Error error `json:"-"`
}

// NewOperationState creates a new operation state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: infrastructure.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = infrastructure.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := infrastructure.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := infrastructure.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the operation as cancelled
func (p *OperationState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := infrastructure.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
}

// GetStatus returns the current status.
func (p *OperationState) GetStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// GetStage returns the state of a specific Step
func (p *OperationState) GetStage(stepID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stepID]
}

// SetStage updates the state of a specific Step
func (p *OperationState) SetStage(stepID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[stepID] = state
}

// GetContext retrieves a value from the operation context
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the operation context
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// Inputs returns the loaded input files.
func (p *OperationState) Inputs() []Input {
	v, _ := p.GetContext(ContextKeyInputs)
	inputs, _ := v.([]Input)
	return inputs
}

// Result returns the analysis object stored by the analyze step.
func (p *OperationState) Result() interface{} {
	v, _ := p.GetContext(ContextKeyResult)
	return v
}

// Outputs returns the artefacts written by the export step.
func (p *OperationState) Outputs() exporter.Outputs {
	v, _ := p.GetContext(ContextKeyOutputs)
	out, _ := v.(exporter.Outputs)
	return out
}

// AddWarnings appends run warnings.
func (p *OperationState) AddWarnings(warnings ...string) {
	if len(warnings) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, _ := p.Context[ContextKeyWarnings].([]string)
	p.Context[ContextKeyWarnings] = append(existing, warnings...)
}

// Warnings returns the warnings collected by the steps.
func (p *OperationState) Warnings() []string {
	v, _ := p.GetContext(ContextKeyWarnings)
	w, _ := v.([]string)
	return w
}

// Alert reports whether the run raised a discrepancy alert.
func (p *OperationState) Alert() bool {
	v, _ := p.GetContext(ContextKeyAlert)
	alert, _ := v.(bool)
	return alert
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return infrastructure.Now().Sub(p.StartTime)
}

// HasFailures returns true if any Step has failed
func (p *OperationState) HasFailures() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, step := range p.Steps {
		if step.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a copy of the operation state safe to hand out.
func (p *OperationState) Clone() *OperationState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := &OperationState{
		ID:        p.ID,
		Tool:      p.Tool,
		Status:    p.Status,
		StartTime: p.StartTime,
		Steps:     make(map[string]*StepState, len(p.Steps)),
		Request:   p.Request,
		Context:   make(map[string]interface{}, len(p.Context)),
		Error:     p.Error,
	}
	if p.EndTime != nil {
		end := *p.EndTime
		clone.EndTime = &end
	}
	for k, v := range p.Steps {
		clone.Steps[k] = v.clone()
	}
	for k, v := range p.Context {
		clone.Context[k] = v
	}
	return clone
}
