package spine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"solari/internal/types"
)

var fixtureNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // a Monday

func fixtureSnapshot() *types.Snapshot {
	return &types.Snapshot{
		Now: fixtureNow,
		Clients: []types.Client{
			{ID: "c-1", Name: "Anna Kovacs", CreatedAt: fixtureNow.AddDate(-1, 0, 0)},
			{ID: "c-2", Name: "Maya Ortiz", CreatedAt: fixtureNow.AddDate(0, -6, 0)},
			{ID: "c-3", Name: "Maya O", CreatedAt: fixtureNow.AddDate(0, -2, 0)},
		},
		Services: []types.Service{
			{ID: "s-1", Name: "Color", Category: "hair", Price: 120, DurationMin: 90},
			{ID: "s-2", Name: "Cut", Category: "hair", Price: 45, DurationMin: 30},
		},
		Bookings: []types.Booking{
			{ID: "b-1", ClientID: "c-1", ServiceID: "s-1", Start: fixtureNow.AddDate(0, 0, 3), Status: types.BookingUpcoming},
			{ID: "b-2", ClientID: "c-2", ServiceID: "s-2", Start: fixtureNow.AddDate(0, 0, -20), Status: types.BookingCompleted},
		},
	}
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"booking", "payments", "clients", "campaigns", "admin"}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("registry order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	m := bookingModule()
	if err := r.Register(m); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(m); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestDetectTable(t *testing.T) {
	snap := fixtureSnapshot()
	tests := []struct {
		text string
		want string // qualified name of top candidate from the owning spine
	}{
		{"book Anna Kovacs for a color tomorrow at 3pm", "booking.create"},
		{"reschedule Anna Kovacs to thursday", "booking.reschedule"},
		{"cancel Anna Kovacs's appointment", "booking.cancel"},
		{"refund $45 to Maya Ortiz", "payments.refund"},
		{"charge Anna Kovacs $120", "payments.capture"},
		{"merge Maya O into Maya Ortiz", "clients.merge"},
		{"suspend Anna Kovacs", "clients.suspend"},
		{"update Anna Kovacs phone to 555-0101", "clients.update"},
		{"send a promo \"spring sale\" to all clients", "campaigns.send"},
		{"preview the lapsed campaign", "campaigns.preview"},
		{"set monday hours to 9am-5pm", "admin.set_hours"},
		{"change the price of a cut to $50", "admin.set_price"},
		{"disable online booking", "admin.toggle"},
	}

	reg := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var best types.Intent
			for _, m := range reg.InOrder() {
				for _, in := range m.Detect(tt.text, snap) {
					if in.Confidence > best.Confidence {
						best = in
					}
				}
			}
			if best.Qualified() != tt.want {
				t.Errorf("top intent = %s (%.2f), want %s", best.Qualified(), best.Confidence, tt.want)
			}
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	snap := fixtureSnapshot()
	text := "refund $45 to Maya Ortiz for the cancelled cut"
	m := paymentsModule()

	first := m.Detect(text, snap)
	for i := 0; i < 10; i++ {
		again := m.Detect(text, snap)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("detection not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestBookingCreateExtraction(t *testing.T) {
	snap := fixtureSnapshot()
	m := bookingModule()
	intent := types.Intent{Spine: "booking", Name: "create"}

	res := m.Extract(intent, "book Anna Kovacs for a Color tomorrow at 3pm", snap)
	if !res.Complete() {
		t.Fatalf("extraction incomplete, missing %v", res.Missing)
	}
	if res.Entities["client_id"] != "c-1" {
		t.Errorf("client_id = %v", res.Entities["client_id"])
	}
	if res.Entities["service_id"] != "s-1" {
		t.Errorf("service_id = %v", res.Entities["service_id"])
	}
	start, err := time.Parse(time.RFC3339, res.Entities["start"].(string))
	if err != nil {
		t.Fatalf("start not RFC3339: %v", err)
	}
	want := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestBookingCreateMissingOrder(t *testing.T) {
	snap := fixtureSnapshot()
	m := bookingModule()
	intent := types.Intent{Spine: "booking", Name: "create"}

	res := m.Extract(intent, "book something sometime", snap)
	want := []string{"client", "service", "start"}
	if diff := cmp.Diff(want, res.Missing); diff != "" {
		t.Errorf("missing order mismatch (-want +got):\n%s", diff)
	}

	flow := m.BuildFlow(intent, res, snap)
	if len(flow) != 3 {
		t.Fatalf("want 3 Ask steps, got %d", len(flow))
	}
	for i, step := range flow {
		if step.Kind != types.StepAsk {
			t.Errorf("step %d kind = %s, want ask", i, step.Kind)
		}
		if step.Field != want[i] {
			t.Errorf("step %d field = %s, want %s", i, step.Field, want[i])
		}
	}
}

func TestBookingIDResolution(t *testing.T) {
	snap := fixtureSnapshot()
	m := bookingModule()

	// Anna has exactly one upcoming booking: resolvable.
	res := m.Extract(types.Intent{Spine: "booking", Name: "cancel"}, "cancel Anna Kovacs's appointment", snap)
	if res.Entities["booking_id"] != "b-1" {
		t.Errorf("booking_id = %v, want b-1", res.Entities["booking_id"])
	}

	// Maya Ortiz has no upcoming booking: stays missing.
	res = m.Extract(types.Intent{Spine: "booking", Name: "cancel"}, "cancel Maya Ortiz's appointment", snap)
	if res.Complete() {
		t.Fatal("expected booking_id to be missing")
	}

	// Two upcoming bookings are ambiguous.
	snap.Bookings = append(snap.Bookings, types.Booking{
		ID: "b-3", ClientID: "c-1", ServiceID: "s-2",
		Start: fixtureNow.AddDate(0, 0, 5), Status: types.BookingUpcoming,
	})
	res = m.Extract(types.Intent{Spine: "booking", Name: "cancel"}, "cancel Anna Kovacs's appointment", snap)
	if _, ok := res.Entities["booking_id"]; ok {
		t.Error("ambiguous upcoming bookings must not auto-resolve")
	}
}

func TestRefundFlowHasConfirmBeforeToolCall(t *testing.T) {
	snap := fixtureSnapshot()
	m := paymentsModule()
	intent := types.Intent{Spine: "payments", Name: "refund"}

	res := m.Extract(intent, "refund $45 to Maya Ortiz", snap)
	if !res.Complete() {
		t.Fatalf("extraction incomplete: %v", res.Missing)
	}
	if res.Entities["amount"] != 45.0 {
		t.Errorf("amount = %v", res.Entities["amount"])
	}

	flow := m.BuildFlow(intent, res, snap)
	if len(flow) != 3 {
		t.Fatalf("want confirm+tool+respond, got %d steps", len(flow))
	}
	if flow[0].Kind != types.StepConfirm {
		t.Errorf("step 0 = %s, want confirm", flow[0].Kind)
	}
	if flow[1].Kind != types.StepToolCall || flow[1].Tool != "payments.refund" {
		t.Errorf("step 1 = %s %s, want tool_call payments.refund", flow[1].Kind, flow[1].Tool)
	}
}

func TestMergeDirection(t *testing.T) {
	snap := fixtureSnapshot()
	m := clientsModule()
	intent := types.Intent{Spine: "clients", Name: "merge"}

	res := m.Extract(intent, "merge Maya O into Maya Ortiz", snap)
	if !res.Complete() {
		t.Fatalf("extraction incomplete: %v", res.Missing)
	}
	if res.Entities["client_id"] != "c-2" {
		t.Errorf("primary = %v, want c-2 (Maya Ortiz)", res.Entities["client_id"])
	}
	if res.Entities["duplicate_id"] != "c-3" {
		t.Errorf("duplicate = %v, want c-3 (Maya O)", res.Entities["duplicate_id"])
	}
}

func TestClientUpdateContact(t *testing.T) {
	snap := fixtureSnapshot()
	m := clientsModule()
	intent := types.Intent{Spine: "clients", Name: "update"}

	res := m.Extract(intent, "update Anna Kovacs email to anna@example.com", snap)
	if res.Entities["field"] != "email" || res.Entities["value"] != "anna@example.com" {
		t.Errorf("entities = %v", res.Entities)
	}

	res = m.Extract(intent, "Anna Kovacs has a new phone 555-123-9876", snap)
	if res.Entities["field"] != "phone" {
		t.Errorf("entities = %v", res.Entities)
	}
}

func TestCampaignSendRequiresMessage(t *testing.T) {
	snap := fixtureSnapshot()
	m := campaignsModule()
	intent := types.Intent{Spine: "campaigns", Name: "send"}

	res := m.Extract(intent, "send a campaign to all clients", snap)
	if res.Complete() {
		t.Fatal("message should be missing")
	}
	if res.Entities["audience"] != "all" {
		t.Errorf("audience = %v", res.Entities["audience"])
	}

	res = m.Extract(intent, `send "20% off this week" to lapsed clients`, snap)
	if !res.Complete() {
		t.Fatalf("extraction incomplete: %v", res.Missing)
	}
	flow := m.BuildFlow(intent, res, snap)
	if flow[0].Kind != types.StepConfirm {
		t.Errorf("mass send must confirm first, got %s", flow[0].Kind)
	}
}

func TestAdminExtraction(t *testing.T) {
	snap := fixtureSnapshot()
	m := adminModule()

	res := m.Extract(types.Intent{Spine: "admin", Name: "set_hours"}, "set monday hours to 9am-5pm", snap)
	if res.Entities["day"] != "monday" {
		t.Errorf("day = %v", res.Entities["day"])
	}
	if res.Entities["hours"] != "9am-5pm" {
		t.Errorf("hours = %v", res.Entities["hours"])
	}

	res = m.Extract(types.Intent{Spine: "admin", Name: "toggle"}, "disable online booking", snap)
	if res.Entities["setting"] != "online booking" {
		t.Errorf("setting = %v", res.Entities["setting"])
	}
	if enabled, _ := res.Entities["enabled"].(bool); enabled {
		t.Error("disable should extract enabled=false")
	}
}

func TestFindStart(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
		ok   bool
	}{
		{"tomorrow at 3pm", time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC), true},
		{"today at 11:30", time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC), true},
		{"on thursday", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), true},
		{"monday at 9am", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true},
		{"whenever", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := findStart(tt.text, fixtureNow)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("start = %v, want %v", got, tt.want)
			}
		})
	}
}
