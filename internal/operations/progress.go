package operations

import (
	"fmt"
	"sync"
	"time"

	"pvinsight/internal/infrastructure"
)

// ProgressTracker tracks progress over a known number of units, e.g. the
// runs of a batch.
type ProgressTracker struct {
	Label     string
	Total     int
	Current   int
	Failed    int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(label string, total int) *ProgressTracker {
	return &ProgressTracker{
		Label:     label,
		Total:     total,
		StartTime: infrastructure.Now(),
	}
}

// Increment counts one finished unit.
func (p *ProgressTracker) Increment(message string, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	if failed {
		p.Failed++
	}
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}
	return p.Current, p.Total, percentage, p.Message
}

// GetETA estimates the remaining time from the average rate so far.
func (p *ProgressTracker) GetETA() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Current == 0 || p.Total == 0 {
		return "calculating..."
	}

	elapsed := infrastructure.Now().Sub(p.StartTime)
	rate := float64(p.Current) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}
	return formatSeconds(float64(p.Total-p.Current) / rate)
}

// IsComplete returns true when every unit finished
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Current >= p.Total
}

// GetElapsedTimeString returns a formatted elapsed time string
func (p *ProgressTracker) GetElapsedTimeString() string {
	return formatSeconds(infrastructure.Now().Sub(p.StartTime).Seconds())
}

// String renders "label 3/5 (1 failed)".
func (p *ProgressTracker) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Failed > 0 {
		return fmt.Sprintf("%s %d/%d (%d failed)", p.Label, p.Current, p.Total, p.Failed)
	}
	return fmt.Sprintf("%s %d/%d", p.Label, p.Current, p.Total)
}

func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.0f seconds", s)
	case s < 3600:
		return fmt.Sprintf("%.1f minutes", s/60)
	default:
		return fmt.Sprintf("%.1f hours", s/3600)
	}
}
