package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solari/internal/audit"
	"solari/internal/flow"
	"solari/internal/policy"
	"solari/internal/spine"
	"solari/internal/tools"
	"solari/internal/types"
)

// fixtureNow is a Monday morning.
var fixtureNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func fixtureSnapshot() *types.Snapshot {
	return &types.Snapshot{
		Now: fixtureNow,
		Clients: []types.Client{
			{ID: "c-1", Name: "Anna Kovacs"},
			{ID: "c-2", Name: "Maya Ortiz"},
		},
		Services: []types.Service{
			{ID: "s-1", Name: "Color", Category: "color", Price: 120},
			{ID: "s-2", Name: "Cut", Category: "cut", Price: 45},
		},
		Bookings: []types.Booking{
			{ID: "b-1", ClientID: "c-1", ServiceID: "s-2", Start: fixtureNow.AddDate(0, 0, 2), Status: types.BookingUpcoming},
		},
	}
}

type harness struct {
	orch  *Orchestrator
	sink  *audit.MemorySink
	calls map[string][]map[string]any
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{calls: make(map[string][]map[string]any)}

	record := func(name string) tools.ExecuteFunc {
		return func(ctx context.Context, args map[string]any) (map[string]any, error) {
			h.calls[name] = append(h.calls[name], args)
			return map[string]any{"id": name + "-1"}, nil
		}
	}

	reg := tools.NewRegistry(2 * time.Second)
	for _, name := range []string{
		"booking.create", "booking.reschedule", "booking.cancel",
		"payments.refund", "payments.capture",
		"clients.update", "clients.merge", "clients.suspend",
		"campaigns.send", "campaigns.preview",
		"admin.set_hours", "admin.set_price", "admin.toggle",
	} {
		reg.MustRegister(&tools.Tool{
			Name:        name,
			Description: name,
			Category:    strings.SplitN(name, ".", 2)[0],
			Execute:     record(name),
		})
	}

	gate, err := policy.NewGate(policy.DefaultTable())
	require.NoError(t, err)

	h.sink = audit.NewMemorySink()
	chain, err := audit.NewChain(h.sink)
	require.NoError(t, err)

	executor, err := flow.NewExecutor(gate, reg, chain, flow.NewTokenStore(0, 0))
	require.NoError(t, err)

	h.orch, err = New(spine.DefaultRegistry(), executor, chain, nil, 0)
	require.NoError(t, err)
	return h
}

func actorWithStepUp(role types.Role) types.Actor {
	return types.Actor{
		ID:   "u-1",
		Role: role,
		StepUp: &types.StepUpCredential{
			Token:     "step-up",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(5 * time.Minute),
			Verified:  true,
		},
	}
}

func TestHandleBooksAppointment(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Handle(context.Background(),
		"book Maya Ortiz for a color tomorrow at 3pm",
		fixtureSnapshot(),
		Options{Actor: types.Actor{ID: "u-1", Role: types.RoleReceptionist}},
	)

	assert.Equal(t, types.StateCompleted, res.State)
	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "Maya Ortiz")

	require.Len(t, h.calls["booking.create"], 1)
	args := h.calls["booking.create"][0]
	assert.Equal(t, "c-2", args["client_id"])
	assert.Equal(t, "s-1", args["service_id"])
	assert.Equal(t, "2026-03-03T15:00:00Z", args["start"])
}

func TestHandleUnrecognizedText(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Handle(context.Background(),
		"the weather is nice today",
		fixtureSnapshot(),
		Options{Actor: types.Actor{ID: "u-1", Role: types.RoleOwner}},
	)

	assert.Equal(t, types.StateCompleted, res.State)
	assert.False(t, res.OK)
	assert.Equal(t, true, res.Data["unrecognized"])
	assert.Empty(t, h.calls)

	// Detection still leaves an audit trace.
	events, err := h.sink.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.KindIntentDetected, events[0].Kind)
}

func TestHandleAsksForMissingFields(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Handle(context.Background(),
		"book Anna Kovacs",
		fixtureSnapshot(),
		Options{Actor: types.Actor{ID: "u-1", Role: types.RoleReceptionist}},
	)

	assert.Equal(t, types.StateCompleted, res.State)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "service")
	assert.Equal(t, []string{"service", "start"}, res.Data["missing"])
	assert.Empty(t, h.calls)
}

func TestHandleConfirmationRoundTrip(t *testing.T) {
	h := newHarness(t)
	actor := actorWithStepUp(types.RoleManager)
	snap := fixtureSnapshot()
	text := "refund $45 to Anna Kovacs"

	first := h.orch.Handle(context.Background(), text, snap, Options{Actor: actor})
	assert.Equal(t, types.StatePendingConfirmation, first.State)
	require.NotEmpty(t, first.ConfirmationToken)
	assert.Contains(t, first.Message, "45")
	assert.Empty(t, h.calls["payments.refund"])

	second := h.orch.Handle(context.Background(), text, snap, Options{
		Actor:             actor,
		ConfirmationToken: first.ConfirmationToken,
	})
	assert.Equal(t, types.StateCompleted, second.State)
	assert.True(t, second.OK)
	require.Len(t, h.calls["payments.refund"], 1)
	assert.Equal(t, 45.0, h.calls["payments.refund"][0]["amount"])

	// The consumed token is inert on replay.
	third := h.orch.Handle(context.Background(), text, snap, Options{
		Actor:             actor,
		ConfirmationToken: first.ConfirmationToken,
	})
	assert.Equal(t, types.StatePendingConfirmation, third.State)
	assert.Len(t, h.calls["payments.refund"], 1)
}

func TestHandleBlocksUnauthorizedRole(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Handle(context.Background(),
		"refund $45 to Anna Kovacs",
		fixtureSnapshot(),
		Options{Actor: types.Actor{ID: "u-1", Role: types.RoleAssistant}},
	)

	assert.Equal(t, types.StatePendingConfirmation, res.State)

	// Confirming does not get the assistant past the gate.
	confirmed := h.orch.Handle(context.Background(),
		"refund $45 to Anna Kovacs",
		fixtureSnapshot(),
		Options{
			Actor:             types.Actor{ID: "u-1", Role: types.RoleAssistant},
			ConfirmationToken: res.ConfirmationToken,
		},
	)
	assert.Equal(t, types.StateBlocked, confirmed.State)
	assert.Empty(t, h.calls["payments.refund"])
}

func TestHandleAttachesExplanation(t *testing.T) {
	h := newHarness(t)

	res := h.orch.Handle(context.Background(),
		"cancel Anna Kovacs's appointment",
		fixtureSnapshot(),
		Options{Actor: types.Actor{ID: "u-1", Role: types.RoleReceptionist}, Explain: true},
	)

	assert.NotEmpty(t, res.Explanation)
	assert.Contains(t, res.Explanation, string(res.State))
}

func TestExplainIsDryRun(t *testing.T) {
	h := newHarness(t)

	out := h.orch.Explain(context.Background(),
		"refund $45 to Anna Kovacs",
		fixtureSnapshot(),
	)

	assert.Contains(t, out, "payments.refund")
	assert.Contains(t, out, "confirm")
	assert.Empty(t, h.calls, "explain must not execute tools")

	events, err := h.sink.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events, "explain must not touch the audit chain")
}

func TestExplainUnrecognized(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Explain(context.Background(), "what a day", fixtureSnapshot())
	assert.Contains(t, out, "does not match")
}
