// Package types provides shared type definitions used across solari packages.
// This package exists to break import cycles between router, flow, and suggest.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// INTENT TYPES
// =============================================================================

// Intent is one classification candidate for a free-text request.
// Confidence is in [0,1]; candidates are ranked descending, ties broken by
// the declaration order of spines in the registry.
type Intent struct {
	Spine       string  `json:"spine"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matched_text"`
}

// Qualified returns the "spine.name" form used in flow signatures and audit records.
func (i Intent) Qualified() string {
	return i.Spine + "." + i.Name
}

// ExtractionResult carries resolved entities and the required fields that
// could not be resolved from text or context. A non-empty Missing list means
// the flow must ask before acting.
type ExtractionResult struct {
	Entities map[string]any `json:"entities"`
	Missing  []string       `json:"missing"`
}

// NewExtractionResult returns an empty result ready for population.
func NewExtractionResult() ExtractionResult {
	return ExtractionResult{Entities: make(map[string]any)}
}

// AddMissing appends a required field name, preserving order and skipping duplicates.
func (e *ExtractionResult) AddMissing(field string) {
	for _, m := range e.Missing {
		if m == field {
			return
		}
	}
	e.Missing = append(e.Missing, field)
}

// Complete reports whether every required field was resolved.
func (e ExtractionResult) Complete() bool {
	return len(e.Missing) == 0
}

// =============================================================================
// FLOW TYPES
// =============================================================================

// StepKind discriminates the FlowStep variants.
type StepKind string

const (
	StepRespond  StepKind = "respond"
	StepAsk      StepKind = "ask"
	StepConfirm  StepKind = "confirm"
	StepToolCall StepKind = "tool_call"
)

// FlowStep is one compiled step of a flow. Exactly the fields for its Kind
// are set; steps are immutable once compiled.
type FlowStep struct {
	Kind StepKind `json:"kind"`

	// StepRespond
	Message string `json:"message,omitempty"`

	// StepAsk
	Field string `json:"field,omitempty"`

	// StepConfirm
	Prompt string `json:"prompt,omitempty"`

	// StepToolCall
	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// Respond builds a message-only step.
func Respond(message string) FlowStep {
	return FlowStep{Kind: StepRespond, Message: message}
}

// Ask builds a step that requests a missing field from the caller.
func Ask(field string) FlowStep {
	return FlowStep{Kind: StepAsk, Field: field}
}

// Confirm builds a step that requires caller confirmation before proceeding.
func Confirm(prompt string) FlowStep {
	return FlowStep{Kind: StepConfirm, Prompt: prompt}
}

// ToolCall builds a side-effecting step executed through the tool registry.
func ToolCall(tool string, args map[string]any) FlowStep {
	return FlowStep{Kind: StepToolCall, Tool: tool, Args: args}
}

// FlowState is the executor state machine state.
type FlowState string

const (
	StateRunning             FlowState = "RUNNING"
	StatePendingConfirmation FlowState = "PENDING_CONFIRMATION"
	StateBlocked             FlowState = "BLOCKED"
	StateCompleted           FlowState = "COMPLETED"
	StateFailed              FlowState = "FAILED"
)

// StepOutcome records one executed (or halted-on) step.
type StepOutcome struct {
	Step       FlowStep  `json:"step"`
	State      FlowState `json:"state"`
	Detail     string    `json:"detail,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// FlowRunResult is the terminal result of one executor pass over a flow.
type FlowRunResult struct {
	State             FlowState      `json:"state"`
	StepsExecuted     []StepOutcome  `json:"steps_executed"`
	OK                bool           `json:"ok"`
	Message           string         `json:"message"`
	Data              map[string]any `json:"data,omitempty"`
	ConfirmationToken string         `json:"confirmation_token,omitempty"`
	Explanation       string         `json:"explanation,omitempty"`
}

// =============================================================================
// ACTOR TYPES
// =============================================================================

// Role is the operator role consulted by the policy gate.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleManager      Role = "manager"
	RoleReceptionist Role = "receptionist"
	RoleAssistant    Role = "assistant"
)

// StepUpCredential is a short-lived proof of authorization required for
// high-risk tool calls beyond normal session authentication.
type StepUpCredential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
}

// Valid reports whether the credential is verified and unexpired at t.
func (c *StepUpCredential) Valid(t time.Time) bool {
	if c == nil || !c.Verified {
		return false
	}
	return t.Before(c.ExpiresAt)
}

// Actor identifies the operator on whose behalf a flow runs.
type Actor struct {
	ID     string            `json:"id"`
	Role   Role              `json:"role"`
	StepUp *StepUpCredential `json:"step_up,omitempty"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s(%s)", a.ID, a.Role)
}

// =============================================================================
// SUGGESTION TYPES
// =============================================================================

// Severity grades a suggestion.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// SuggestedAction is a one-click follow-up the caller can turn into a flow.
type SuggestedAction struct {
	Label   string         `json:"label"`
	Intent  string         `json:"intent"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Suggestion is an advisory recommendation with its literal derivation trail.
// Why must never be empty: a suggestion is only useful if it can be explained
// without re-deriving it.
type Suggestion struct {
	ID       string            `json:"id"`
	Engine   string            `json:"engine"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Severity Severity          `json:"severity"`
	Why      []string          `json:"why"`
	Actions  []SuggestedAction `json:"actions,omitempty"`
}
