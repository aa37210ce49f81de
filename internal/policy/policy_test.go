package policy

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"solari/internal/types"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func validStepUp() *types.StepUpCredential {
	return &types.StepUpCredential{
		Token:     "stepup-1",
		IssuedAt:  testNow.Add(-time.Minute),
		ExpiresAt: testNow.Add(4 * time.Minute),
		Verified:  true,
	}
}

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(DefaultTable())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	return g
}

func TestAuthorizeByRoleCategory(t *testing.T) {
	g := newTestGate(t)

	tests := []struct {
		name  string
		actor types.Actor
		tool  string
		allow bool
	}{
		{"receptionist books", types.Actor{ID: "op-1", Role: types.RoleReceptionist}, "booking.create", true},
		{"receptionist cannot refund", types.Actor{ID: "op-1", Role: types.RoleReceptionist}, "payments.refund", false},
		{"assistant cannot touch clients", types.Actor{ID: "op-2", Role: types.RoleAssistant}, "clients.update", false},
		{"manager books", types.Actor{ID: "op-3", Role: types.RoleManager}, "booking.cancel", true},
		{"unknown role denied", types.Actor{ID: "op-4", Role: "intern"}, "booking.create", false},
		{"unknown tool denied", types.Actor{ID: "op-5", Role: types.RoleOwner}, "payments.wire", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.AuthorizeAt(tt.actor, tt.tool, nil, testNow)
			if d.Allow != tt.allow {
				t.Errorf("Authorize(%s, %s) = %v (%s), want allow=%v", tt.actor, tt.tool, d.Allow, d.Reason, tt.allow)
			}
			if !d.Allow && d.Reason == "" {
				t.Error("deny must carry a reason")
			}
		})
	}
}

func TestHighRiskRequiresStepUp(t *testing.T) {
	g := newTestGate(t)
	owner := types.Actor{ID: "op-1", Role: types.RoleOwner}

	if d := g.AuthorizeAt(owner, "payments.refund", nil, testNow); d.Allow {
		t.Fatalf("high-risk tool allowed without step-up: %+v", d)
	}

	owner.StepUp = validStepUp()
	if d := g.AuthorizeAt(owner, "payments.refund", nil, testNow); !d.Allow {
		t.Fatalf("high-risk tool denied despite valid step-up: %s", d.Reason)
	}

	// Expired credential is a deny, never a soft-allow.
	owner.StepUp.ExpiresAt = testNow.Add(-time.Second)
	if d := g.AuthorizeAt(owner, "payments.refund", nil, testNow); d.Allow {
		t.Fatal("expired step-up credential was accepted")
	}

	// Unverified credential is a deny.
	owner.StepUp = validStepUp()
	owner.StepUp.Verified = false
	if d := g.AuthorizeAt(owner, "payments.refund", nil, testNow); d.Allow {
		t.Fatal("unverified step-up credential was accepted")
	}
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	g := newTestGate(t)
	actor := types.Actor{ID: "op-1", Role: types.RoleManager}
	a := g.AuthorizeAt(actor, "booking.create", map[string]any{"client": "c-1"}, testNow)
	b := g.AuthorizeAt(actor, "booking.create", map[string]any{"client": "c-1"}, testNow)
	if a != b {
		t.Errorf("identical inputs produced different decisions: %+v vs %+v", a, b)
	}
}

func TestConcurrentAuthorizeAndReload(t *testing.T) {
	g := newTestGate(t)
	actor := types.Actor{ID: "op-1", Role: types.RoleReceptionist}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g.AuthorizeAt(actor, "booking.create", nil, testNow)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			if err := g.Reload(DefaultTable()); err != nil {
				t.Errorf("Reload failed: %v", err)
			}
		}
	}()
	wg.Wait()
}

func TestReloadRejectsInvalidTable(t *testing.T) {
	g := newTestGate(t)
	if err := g.Reload(&Table{}); err == nil {
		t.Fatal("empty table should be rejected")
	}
	// Previous table still in force.
	d := g.AuthorizeAt(types.Actor{ID: "op-1", Role: types.RoleOwner}, "booking.create", nil, testNow)
	if !d.Allow {
		t.Errorf("gate lost its table after rejected reload: %s", d.Reason)
	}
}

func TestLoadTableFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
roles:
  owner: [booking, payments]
  assistant: [booking]
tools:
  booking.create:
    category: booking
    risk: low
  payments.refund:
    category: payments
    risk: high
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if table.Tools["payments.refund"].Risk != RiskHigh {
		t.Errorf("risk tier not parsed, got %q", table.Tools["payments.refund"].Risk)
	}

	g, err := NewGate(table)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	d := g.AuthorizeAt(types.Actor{ID: "op-1", Role: types.RoleAssistant}, "booking.create", nil, testNow)
	if !d.Allow {
		t.Errorf("assistant should book under loaded table: %s", d.Reason)
	}
}

func TestLoadTableBadRisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
roles:
  owner: [booking]
tools:
  booking.create:
    category: booking
    risk: extreme
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Fatal("invalid risk tier should fail validation")
	}
}
