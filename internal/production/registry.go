package production

import (
	"context"
	"fmt"
	"sync"
)

// Analysis ids, in execution order.
const (
	IDGlobalProduction  = "global_production"
	IDThreshold         = "threshold"
	IDPowerDistribution = "power_distribution"
	IDInverterClipping  = "inverter_clipping"
	IDGridLimit         = "grid_limit"
	IDLoadFactor        = "load_factor"
)

// AnalysisIDs lists every built-in analysis in execution order.
var AnalysisIDs = []string{
	IDGlobalProduction,
	IDThreshold,
	IDPowerDistribution,
	IDInverterClipping,
	IDGridLimit,
	IDLoadFactor,
}

// Analysis computes one result and stores it in the context.
type Analysis interface {
	ID() string
	Run(c *Context)
}

// AnalysisFunc adapts a function to Analysis.
type AnalysisFunc struct {
	Name string
	Fn   func(c *Context)
}

// ID implements Analysis.
func (a AnalysisFunc) ID() string { return a.Name }

// Run implements Analysis.
func (a AnalysisFunc) Run(c *Context) { a.Fn(c) }

// Registry keeps analyses in registration order.
type Registry struct {
	mu       sync.RWMutex
	analyses map[string]Analysis
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyses: make(map[string]Analysis)}
}

// DefaultRegistry returns a registry with the six built-in analyses.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []Analysis{
		AnalysisFunc{IDGlobalProduction, AnalyzeGlobalProduction},
		AnalysisFunc{IDThreshold, AnalyzeThreshold},
		AnalysisFunc{IDPowerDistribution, AnalyzePowerDistribution},
		AnalysisFunc{IDInverterClipping, AnalyzeInverterClipping},
		AnalysisFunc{IDGridLimit, AnalyzeGridLimit},
		AnalysisFunc{IDLoadFactor, AnalyzeLoadFactor},
	} {
		// ids are constants and unique
		_ = r.Register(a)
	}
	return r
}

// Register adds an analysis. Ids must be unique.
func (r *Registry) Register(a Analysis) error {
	if a == nil {
		return fmt.Errorf("cannot register nil analysis")
	}
	id := a.ID()
	if id == "" {
		return fmt.Errorf("analysis ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.analyses[id]; exists {
		return fmt.Errorf("analysis with ID %s already registered", id)
	}
	r.analyses[id] = a
	r.order = append(r.order, id)
	return nil
}

// IDs returns the registered ids in order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// RunAll runs every analysis in registration order. It stops early only
// when ctx is done.
func (r *Registry) RunAll(ctx context.Context, c *Context) error {
	r.mu.RLock()
	analyses := make([]Analysis, 0, len(r.order))
	for _, id := range r.order {
		analyses = append(analyses, r.analyses[id])
	}
	r.mu.RUnlock()

	for _, a := range analyses {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Run(c)
	}
	return nil
}
