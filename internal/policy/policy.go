// Package policy implements the stateless authorization gate consulted by
// the flow executor before every tool call. Decisions are pure functions of
// the current table snapshot, the actor, and the tool; the gate never
// mutates state and is safe to call from concurrent flows.
package policy

import (
	"fmt"
	"sync/atomic"
	"time"

	"solari/internal/logging"
	"solari/internal/types"
)

// RiskTier grades how dangerous a tool category is.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high" // requires a validated step-up credential
)

// Decision is the gate's answer for one (actor, tool, args) triple.
type Decision struct {
	Allow    bool     `json:"allow"`
	Reason   string   `json:"reason"`
	Tool     string   `json:"tool"`
	Category string   `json:"category,omitempty"`
	Risk     RiskTier `json:"risk,omitempty"`
}

func allow(tool, category string, risk RiskTier) Decision {
	return Decision{Allow: true, Reason: "allowed", Tool: tool, Category: category, Risk: risk}
}

func deny(tool, category string, risk RiskTier, reason string) Decision {
	return Decision{Allow: false, Reason: reason, Tool: tool, Category: category, Risk: risk}
}

// Gate authorizes tool calls against an immutable table snapshot. Reload
// swaps the snapshot atomically so in-flight decisions keep the table they
// started with.
type Gate struct {
	table atomic.Pointer[Table]
}

// NewGate creates a gate over the given table.
func NewGate(t *Table) (*Gate, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	g := &Gate{}
	g.table.Store(t)
	return g, nil
}

// Reload atomically replaces the policy table. Invalid tables are rejected
// and the previous table stays in force.
func (g *Gate) Reload(t *Table) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("policy reload rejected: %w", err)
	}
	g.table.Store(t)
	logging.PolicyDebug("policy table reloaded: %d roles, %d tools", len(t.Roles), len(t.Tools))
	return nil
}

// Authorize decides whether actor may invoke tool with args, evaluated at
// wall-clock now. Absence of a required step-up credential is a deny, never
// a soft-allow.
func (g *Gate) Authorize(actor types.Actor, tool string, args map[string]any) Decision {
	return g.AuthorizeAt(actor, tool, args, time.Now())
}

// AuthorizeAt is Authorize with an explicit evaluation time, used wherever
// determinism matters (tests, audit replay).
func (g *Gate) AuthorizeAt(actor types.Actor, tool string, args map[string]any, now time.Time) Decision {
	t := g.table.Load()

	rule, ok := t.Tools[tool]
	if !ok {
		d := deny(tool, "", "", fmt.Sprintf("unknown tool %q", tool))
		logging.PolicyDebug("deny actor=%s tool=%s reason=%s", actor, tool, d.Reason)
		return d
	}

	categories, ok := t.Roles[string(actor.Role)]
	if !ok {
		d := deny(tool, rule.Category, rule.Risk, fmt.Sprintf("unknown role %q", actor.Role))
		logging.PolicyDebug("deny actor=%s tool=%s reason=%s", actor, tool, d.Reason)
		return d
	}

	if !contains(categories, rule.Category) {
		d := deny(tool, rule.Category, rule.Risk,
			fmt.Sprintf("role %q is not allowed category %q", actor.Role, rule.Category))
		logging.PolicyDebug("deny actor=%s tool=%s reason=%s", actor, tool, d.Reason)
		return d
	}

	if rule.Risk == RiskHigh && !actor.StepUp.Valid(now) {
		d := deny(tool, rule.Category, rule.Risk,
			fmt.Sprintf("tool %q is high-risk and requires a valid step-up credential", tool))
		logging.PolicyDebug("deny actor=%s tool=%s reason=%s", actor, tool, d.Reason)
		return d
	}

	logging.PolicyDebug("allow actor=%s tool=%s category=%s risk=%s", actor, tool, rule.Category, rule.Risk)
	return allow(tool, rule.Category, rule.Risk)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
