package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolRule declares a tool's category and risk tier.
type ToolRule struct {
	Category string   `yaml:"category"`
	Risk     RiskTier `yaml:"risk"`
}

// Table is the declarative policy: which roles may use which tool
// categories, and which tools belong to which category at which risk tier.
type Table struct {
	Roles map[string][]string `yaml:"roles"`
	Tools map[string]ToolRule `yaml:"tools"`
}

// LoadTable reads a policy table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse policy table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate rejects structurally broken tables before they reach the gate.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("policy table is nil")
	}
	if len(t.Roles) == 0 {
		return fmt.Errorf("policy table declares no roles")
	}
	if len(t.Tools) == 0 {
		return fmt.Errorf("policy table declares no tools")
	}
	for tool, rule := range t.Tools {
		if rule.Category == "" {
			return fmt.Errorf("tool %q has no category", tool)
		}
		switch rule.Risk {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			return fmt.Errorf("tool %q has invalid risk tier %q", tool, rule.Risk)
		}
	}
	return nil
}

// DefaultTable returns the built-in policy used when no table file is
// configured. Roles mirror the front-desk hierarchy; payment capture,
// refunds, suspensions, and bulk sends are high-risk.
func DefaultTable() *Table {
	return &Table{
		Roles: map[string][]string{
			"owner":        {"booking", "payments", "clients", "campaigns", "admin"},
			"manager":      {"booking", "payments", "clients", "campaigns"},
			"receptionist": {"booking", "clients"},
			"assistant":    {"booking"},
		},
		Tools: map[string]ToolRule{
			"booking.create":     {Category: "booking", Risk: RiskLow},
			"booking.reschedule": {Category: "booking", Risk: RiskLow},
			"booking.cancel":     {Category: "booking", Risk: RiskMedium},
			"payments.capture":   {Category: "payments", Risk: RiskHigh},
			"payments.refund":    {Category: "payments", Risk: RiskHigh},
			"clients.update":     {Category: "clients", Risk: RiskLow},
			"clients.merge":      {Category: "clients", Risk: RiskMedium},
			"clients.suspend":    {Category: "clients", Risk: RiskHigh},
			"campaigns.send":     {Category: "campaigns", Risk: RiskHigh},
			"campaigns.preview":  {Category: "campaigns", Risk: RiskLow},
			"admin.set_hours":    {Category: "admin", Risk: RiskMedium},
			"admin.set_price":    {Category: "admin", Risk: RiskMedium},
			"admin.toggle":       {Category: "admin", Risk: RiskHigh},
		},
	}
}
