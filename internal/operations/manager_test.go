package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
	"pvinsight/internal/notify"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRun(ctx context.Context, event notify.RunEvent) error {
	return m.Called(ctx, event).Error(0)
}

func threeStepPipeline(analyze func(ctx context.Context, state *OperationState) error) (*Registry, map[string]*fakeStep) {
	steps := map[string]*fakeStep{
		StepIDLoad: newFakeStep(StepIDLoad, nil, func(_ context.Context, state *OperationState) error {
			state.SetContext(ContextKeyInputs, state.Request.Inputs)
			return nil
		}),
		StepIDAnalyze: newFakeStep(StepIDAnalyze, []string{StepIDLoad}, analyze),
		StepIDExport: newFakeStep(StepIDExport, []string{StepIDAnalyze}, func(_ context.Context, state *OperationState) error {
			state.SetContext(ContextKeyOutputs, exporter.Outputs{Files: []exporter.OutputFile{
				{Kind: exporter.KindJSON, Name: "summary.json", Path: "/out/summary.json"},
			}})
			return nil
		}),
	}
	r := NewRegistry().MustRegister(steps[StepIDLoad], steps[StepIDAnalyze], steps[StepIDExport])
	return r, steps
}

func TestManagerExecute_Success(t *testing.T) {
	hub := &recordingHub{}
	registry, steps := threeStepPipeline(func(_ context.Context, state *OperationState) error {
		state.SetContext(ContextKeyResult, "analysis")
		state.SetContext(ContextKeyAlert, true)
		state.AddWarnings("missing unit")
		return nil
	})
	pub := &mockPublisher{}
	pub.On("PublishRun", mock.Anything, mock.MatchedBy(func(e notify.RunEvent) bool {
		return e.Tool == ToolTMY && e.Status == "completed" && e.Alert &&
			len(e.SourceFiles) == 1 && e.SourceFiles[0].Name == "a.csv" &&
			len(e.Outputs) == 1 && e.Outputs[0] == "/out/summary.json"
	})).Return(nil).Once()

	m := NewManager(hub, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{Publisher: pub})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)

	assert.Len(t, resp.ID, 26, "ULID run id")
	assert.Equal(t, ToolTMY, resp.Tool)
	assert.Equal(t, OperationStatusCompleted, resp.Status)
	assert.True(t, resp.Alert)
	assert.Equal(t, []string{"missing unit"}, resp.Warnings)
	assert.Equal(t, "analysis", resp.Result)
	require.Len(t, resp.Outputs.Files, 1)
	for id, s := range steps {
		assert.Equal(t, int32(1), s.calls.Load(), id)
		assert.Equal(t, StepStatusCompleted, resp.Steps[id].Status, id)
	}
	pub.AssertExpectations(t)

	snaps := hub.snapshots()
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 100, last.Progress)
	assert.True(t, last.Alert)

	_, err = m.GetOperation(resp.ID)
	assert.ErrorIs(t, err, ErrOperationNotFound, "finished runs are not active")
}

func TestManagerExecute_RequestValidation(t *testing.T) {
	registry, _ := threeStepPipeline(nil)
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	tests := []struct {
		name string
		req  OperationRequest
	}{
		{"no inputs", OperationRequest{Tool: ToolTMY}},
		{"unknown tool", OperationRequest{Tool: "pdf_merge", Inputs: []Input{{Name: "a"}}}},
		{"tool without pipeline", testRequest(ToolHourly)},
		{"too many inputs", OperationRequest{Tool: ToolTMY, Inputs: []Input{{}, {}, {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.Execute(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
			assert.Equal(t, OperationStatusFailed, resp.Status)
		})
	}
}

func TestManagerExecute_RetriesRetryableErrors(t *testing.T) {
	attempt := 0
	registry, steps := threeStepPipeline(func(context.Context, *OperationState) error {
		attempt++
		if attempt == 1 {
			return apperrors.NewExportError("disk busy", nil)
		}
		return nil
	})
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	assert.Equal(t, int32(2), steps[StepIDAnalyze].calls.Load())
	assert.Equal(t, 2, resp.Steps[StepIDAnalyze].Attempts)
}

func TestManagerExecute_ParsingErrorIsFinal(t *testing.T) {
	registry, steps := threeStepPipeline(func(context.Context, *OperationState) error {
		return apperrors.NewParsingError("no 'date' header", nil)
	})
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.Error(t, err)
	assert.Equal(t, ErrorTypeParsing, GetErrorType(err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Equal(t, int32(1), steps[StepIDAnalyze].calls.Load())
	assert.Equal(t, int32(0), steps[StepIDExport].calls.Load())

	assert.Equal(t, OperationStatusFailed, resp.Status)
	assert.Equal(t, StepStatusFailed, resp.Steps[StepIDAnalyze].Status)
	assert.Equal(t, StepStatusSkipped, resp.Steps[StepIDExport].Status)
	assert.Contains(t, resp.Error, "no 'date' header")
}

func TestManagerExecute_StepValidationFails(t *testing.T) {
	registry, steps := threeStepPipeline(nil)
	steps[StepIDAnalyze].validate = func(*OperationState) error { return errors.New("needs 2 files") }
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, int32(0), steps[StepIDAnalyze].calls.Load())
	assert.Equal(t, StepStatusSkipped, resp.Steps[StepIDExport].Status)
}

func TestManagerExecute_StepTimeout(t *testing.T) {
	registry, _ := threeStepPipeline(func(ctx context.Context, _ *OperationState) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cfg := fastConfig()
	cfg.RetryConfig.MaxAttempts = 1
	cfg.SetStageTimeout(StepIDAnalyze, 20*time.Millisecond)
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, cfg, ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Equal(t, OperationStatusFailed, resp.Status)
}

func TestManagerExecute_Cancel(t *testing.T) {
	started := make(chan string, 1)
	registry, _ := threeStepPipeline(func(ctx context.Context, state *OperationState) error {
		started <- state.ID
		<-ctx.Done()
		return ctx.Err()
	})
	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{})
	defer m.GetBroadcaster().Stop()

	type result struct {
		resp *OperationResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
		done <- result{resp, err}
	}()

	id := <-started
	running, err := m.GetOperation(id)
	require.NoError(t, err)
	assert.Equal(t, OperationStatusRunning, running.Status)
	assert.Len(t, m.ListOperations(), 1)
	require.NoError(t, m.CancelOperation(id))

	select {
	case r := <-done:
		require.Error(t, r.err)
		assert.Equal(t, ErrorTypeCancellation, GetErrorType(r.err))
		assert.Equal(t, OperationStatusCancelled, r.resp.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.ErrorIs(t, m.CancelOperation("unknown"), ErrOperationNotFound)
}

func TestManagerExecute_PublishFailureDoesNotFailRun(t *testing.T) {
	registry, _ := threeStepPipeline(nil)
	pub := &mockPublisher{}
	pub.On("PublishRun", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	m := NewManager(nil, map[string]*Registry{ToolTMY: registry}, fastConfig(), ManagerOptions{Publisher: pub})
	defer m.GetBroadcaster().Stop()

	resp, err := m.Execute(context.Background(), testRequest(ToolTMY))
	require.NoError(t, err)
	assert.Equal(t, OperationStatusCompleted, resp.Status)
	pub.AssertExpectations(t)
}

func TestCalculateRetryDelay(t *testing.T) {
	m := &Manager{}
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, m.calculateRetryDelay(1, cfg))
	assert.Equal(t, 200*time.Millisecond, m.calculateRetryDelay(2, cfg))
	assert.Equal(t, 400*time.Millisecond, m.calculateRetryDelay(3, cfg))
	assert.Equal(t, time.Second, m.calculateRetryDelay(10, cfg))
}
