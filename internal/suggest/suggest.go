// Package suggest holds the advisory engines: independent, side-effect-free
// scorers that read a business snapshot and emit suggestions with a literal
// derivation trail. Engines never call tools or touch the audit chain.
package suggest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"solari/internal/logging"
	"solari/internal/types"
)

// ============================================================================
// ENGINE REGISTRY
// ============================================================================

// Engine is one advisory scorer. Run must be pure over the snapshot and
// must attach at least one Why line to every suggestion it emits.
type Engine interface {
	Name() string
	Run(snap *types.Snapshot) []types.Suggestion
}

// EngineFailure records one engine that panicked or misbehaved during a run.
type EngineFailure struct {
	Engine string `json:"engine"`
	Err    error  `json:"-"`
	Detail string `json:"detail"`
}

// Registry runs a fixed set of engines and concatenates their output.
type Registry struct {
	engines []Engine
}

// NewRegistry builds a registry over the given engines, keeping their order.
func NewRegistry(engines ...Engine) *Registry {
	return &Registry{engines: engines}
}

// DefaultRegistry returns the full advisory battery.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&NoShowEngine{},
		&ChurnEngine{},
		&RebookingEngine{},
		&PricingEngine{},
		&InventoryEngine{},
		&InboxEngine{},
		&UpsellEngine{},
	)
}

// Engines returns the registered engine names in run order.
func (r *Registry) Engines() []string {
	names := make([]string, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	return names
}

// RunAll executes every engine concurrently and returns the concatenated
// suggestions in engine registration order. A panicking engine is recorded
// as a failure and never blocks the others; callers always get the partial
// results.
func (r *Registry) RunAll(ctx context.Context, snap *types.Snapshot) ([]types.Suggestion, []EngineFailure) {
	results := make([][]types.Suggestion, len(r.engines))

	var mu sync.Mutex
	var failures []EngineFailure

	g, _ := errgroup.WithContext(ctx)
	for i, engine := range r.engines {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					logging.SuggestDebug("engine %s panicked: %v", engine.Name(), rec)
					mu.Lock()
					failures = append(failures, EngineFailure{
						Engine: engine.Name(),
						Err:    fmt.Errorf("engine %s panicked: %v", engine.Name(), rec),
						Detail: fmt.Sprintf("panic: %v", rec),
					})
					mu.Unlock()
				}
			}()
			results[i] = engine.Run(snap)
			return nil
		})
	}
	_ = g.Wait()

	var out []types.Suggestion
	for i := range results {
		out = append(out, results[i]...)
	}
	logging.SuggestDebug("run complete engines=%d suggestions=%d failures=%d",
		len(r.engines), len(out), len(failures))
	return out, failures
}

// newSuggestion stamps the common fields of an emitted suggestion.
func newSuggestion(engine, title, message string, severity types.Severity, why []string, actions ...types.SuggestedAction) types.Suggestion {
	return types.Suggestion{
		ID:       uuid.NewString(),
		Engine:   engine,
		Title:    title,
		Message:  message,
		Severity: severity,
		Why:      why,
		Actions:  actions,
	}
}
