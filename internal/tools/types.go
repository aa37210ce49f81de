// Package tools provides the tool registry the flow executor invokes for
// side-effecting steps. The core treats each tool as an opaque capability:
// how a tool persists state is not its concern, only name resolution,
// argument validation, and bounded invocation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is one registered business capability (booking.create,
// payments.refund, ...). Names use the category.verb convention so the
// policy gate's tool rules line up one-to-one.
type Tool struct {
	// Name is the unique identifier, "category.verb".
	Name string

	// Description explains what the tool does.
	Description string

	// Category groups tools for policy lookup ("booking", "payments", ...).
	Category string

	// Execute runs the tool with validated arguments.
	Execute ExecuteFunc

	// ArgsSchema is a JSON Schema document for the args map. Optional; when
	// set, arguments are validated before Execute runs.
	ArgsSchema string

	compiledSchema *jsonschema.Schema
}

// Validate checks the tool definition and compiles its schema.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	if t.ArgsSchema != "" {
		schema, err := jsonschema.CompileString(t.Name+".schema.json", t.ArgsSchema)
		if err != nil {
			return fmt.Errorf("tool %s has invalid args schema: %w", t.Name, err)
		}
		t.compiledSchema = schema
	}
	return nil
}

// CheckArgs validates args against the tool's schema, if any.
func (t *Tool) CheckArgs(args map[string]any) error {
	if t.compiledSchema == nil {
		return nil
	}
	// Round-trip through JSON so numeric types normalize the way the schema
	// validator expects.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := t.compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// Result wraps one tool invocation with metadata.
type Result struct {
	ToolName   string         `json:"tool"`
	Data       map[string]any `json:"data,omitempty"`
	Error      error          `json:"-"`
	ErrorText  string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// IsSuccess returns true if the tool executed without error.
func (r *Result) IsSuccess() bool {
	return r.Error == nil
}
