// Package spine holds the per-domain bundles of intent detection, entity
// extraction, and flow building. Domains are plain function bundles selected
// by table lookup; the registry preserves declaration order because ranking
// ties break in favor of earlier spines.
package spine

import (
	"fmt"

	"solari/internal/types"
)

// Module is one domain bundle. All three functions are pure over their
// inputs: identical (text, snapshot) always produces identical output, which
// keeps audit replay meaningful.
type Module struct {
	Name string

	// Detect classifies free text into this domain's intent candidates.
	Detect func(text string, snap *types.Snapshot) []types.Intent

	// Extract resolves the entities the intent's flow requires and reports
	// the required fields it could not resolve.
	Extract func(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult

	// BuildFlow compiles the intent into ordered steps. No side effects, no
	// tool calls; missing fields compile to leading Ask steps.
	BuildFlow func(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep
}

// Registry maps domain names to modules, preserving registration order.
type Registry struct {
	order   []string
	modules map[string]*Module
}

// NewRegistry creates an empty spine registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds a module. Duplicate names are an error.
func (r *Registry) Register(m *Module) error {
	if m.Name == "" {
		return fmt.Errorf("spine module has no name")
	}
	if m.Detect == nil || m.Extract == nil || m.BuildFlow == nil {
		return fmt.Errorf("spine module %q is missing a function", m.Name)
	}
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("spine module %q already registered", m.Name)
	}
	r.modules[m.Name] = m
	r.order = append(r.order, m.Name)
	return nil
}

// Get returns the module for a domain name, or nil.
func (r *Registry) Get(name string) *Module {
	return r.modules[name]
}

// InOrder returns the modules in declaration order.
func (r *Registry) InOrder() []*Module {
	out := make([]*Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// Names returns the registered domain names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultRegistry returns the five production spines in ranking order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range []*Module{
		bookingModule(),
		paymentsModule(),
		clientsModule(),
		campaignsModule(),
		adminModule(),
	} {
		if err := r.Register(m); err != nil {
			panic(fmt.Sprintf("default spine registration failed: %v", err))
		}
	}
	return r
}
