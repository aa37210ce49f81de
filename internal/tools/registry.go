package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"solari/internal/logging"
)

// Registry holds all available tools and provides lookup and invocation.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	// byCategory provides fast lookup by category.
	byCategory map[string][]*Tool

	// timeout bounds every invocation. Zero means no deadline beyond the
	// caller's context.
	timeout time.Duration
}

// NewRegistry creates a new empty tool registry with the given per-call
// timeout.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[string][]*Tool),
		timeout:    timeout,
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("Registered tool: %s (category=%s)", tool.Name, tool.Category)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at init time.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetByCategory returns all tools in a category, sorted by name.
func (r *Registry) GetByCategory(category string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, len(r.byCategory[category]))
	copy(out, r.byCategory[category])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke runs a tool by name with the given arguments. Arguments are
// validated against the tool's schema, and execution is bounded by the
// registry timeout. A deadline overrun surfaces as ErrToolTimeout.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	start := time.Now()

	if err := tool.CheckArgs(args); err != nil {
		return &Result{
			ToolName:   name,
			Error:      err,
			ErrorText:  err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		}, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logging.ToolsDebug("Invoking tool: %s", name)
	data, err := runGuarded(ctx, tool, args)
	duration := time.Since(start)

	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s after %v", ErrToolTimeout, name, duration)
	}
	logging.ToolsDebug("Tool %s completed in %v (success=%v)", name, duration, err == nil)

	res := &Result{
		ToolName:   name,
		Data:       data,
		Error:      err,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		res.ErrorText = err.Error()
	}
	return res, err
}

// runGuarded executes the tool in its own goroutine so a hung tool cannot
// outlive the deadline, and a panicking tool surfaces as an error instead of
// taking down the flow.
func runGuarded(ctx context.Context, tool *Tool, args map[string]any) (map[string]any, error) {
	type outcome struct {
		data map[string]any
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", tool.Name, rec)}
			}
		}()
		data, err := tool.Execute(ctx, args)
		done <- outcome{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.data, out.err
	}
}
