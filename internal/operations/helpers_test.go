package operations

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeStep runs fn; calls counts every attempt.
type fakeStep struct {
	BaseStage
	fn       func(ctx context.Context, state *OperationState) error
	validate func(state *OperationState) error
	calls    atomic.Int32
}

func newFakeStep(id string, deps []string, fn func(ctx context.Context, state *OperationState) error) *fakeStep {
	return &fakeStep{BaseStage: NewBaseStage(id, "Step "+id, deps), fn: fn}
}

func (s *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	s.calls.Add(1)
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, state)
}

func (s *fakeStep) Validate(state *OperationState) error {
	if s.validate != nil {
		return s.validate(state)
	}
	return nil
}

// recordingHub stores every broadcast.
type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

type hubEvent struct {
	eventType, step, status string
	metadata                interface{}
}

func (h *recordingHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{eventType, step, status, metadata})
}

func (h *recordingHub) snapshots() []*OperationSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*OperationSnapshot
	for _, e := range h.events {
		if s, ok := e.metadata.(*OperationSnapshot); ok {
			out = append(out, s)
		}
	}
	return out
}

func testRequest(tool string) OperationRequest {
	return OperationRequest{
		Tool:   tool,
		Inputs: []Input{{Name: "a.csv", Path: "a.csv", Data: []byte("x")}},
	}
}

func fastConfig() *Config {
	cfg := NewConfig()
	cfg.RetryConfig = RetryConfig{MaxAttempts: 3, InitialDelay: 1e6, MaxDelay: 5e6, Multiplier: 2}
	return cfg
}
