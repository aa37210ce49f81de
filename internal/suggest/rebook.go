package suggest

import (
	"fmt"
	"sort"
	"time"

	"solari/internal/types"
)

// Rebooking stage boundaries in days-until-due. Negative means overdue.
const (
	rebookGentleDays  = 14
	rebookUrgencyDays = 7
	rebookWinBackDays = -7
)

// RebookingEngine estimates when each client is due back for each service
// they use, preferring the client's own interval over the service's category
// default, and names the outreach stage for the remaining window.
type RebookingEngine struct{}

func (e *RebookingEngine) Name() string { return "rebooking_windows" }

func (e *RebookingEngine) Run(snap *types.Snapshot) []types.Suggestion {
	var out []types.Suggestion
	for _, c := range snap.Clients {
		for _, svc := range clientServices(snap, c.ID) {
			if hasUpcoming(snap, c.ID, svc) {
				continue
			}
			s := e.forService(snap, c, svc)
			if s != nil {
				out = append(out, *s)
			}
		}
	}
	return out
}

func (e *RebookingEngine) forService(snap *types.Snapshot, c types.Client, serviceID string) *types.Suggestion {
	visits := serviceVisits(snap, c.ID, serviceID)
	if len(visits) == 0 {
		return nil
	}

	interval, source := serviceInterval(snap, visits, serviceID)
	if interval <= 0 {
		return nil
	}

	last := visits[len(visits)-1]
	due := last.Add(time.Duration(interval * 24 * float64(time.Hour)))
	remaining := days(snap.Now, due)

	stage, severity := rebookStage(remaining)
	if stage == "" {
		return nil
	}

	svcName := serviceLabel(snap, serviceID)
	s := newSuggestion(
		e.Name(),
		fmt.Sprintf("Rebooking window: %s", stage),
		fmt.Sprintf("%s is due for %s in %.0f days (%s outreach).", c.Name, svcName, remaining, stage),
		severity,
		[]string{
			fmt.Sprintf("last %s visit was %.0f days ago", svcName, days(last, snap.Now)),
			fmt.Sprintf("estimated interval is %.0f days (%s)", interval, source),
			fmt.Sprintf("%.0f days remain until due, stage %q", remaining, stage),
		},
		types.SuggestedAction{
			Label:   fmt.Sprintf("Book %s for %s", svcName, c.Name),
			Intent:  "booking.create",
			Payload: map[string]any{"client_id": c.ID, "service_id": serviceID},
		},
	)
	return &s
}

// rebookStage maps remaining days to the outreach stage. Outside the gentle
// window there is nothing to say yet.
func rebookStage(remaining float64) (string, types.Severity) {
	switch {
	case remaining <= rebookWinBackDays:
		return "win_back", types.SeverityWarn
	case remaining <= 0:
		return "scarcity", types.SeverityWarn
	case remaining <= rebookUrgencyDays:
		return "urgency", types.SeverityInfo
	case remaining <= rebookGentleDays:
		return "gentle", types.SeverityInfo
	default:
		return "", types.SeverityInfo
	}
}

// serviceInterval prefers the client's own history (two or more completed
// visits for the service) and falls back to the service's category default.
func serviceInterval(snap *types.Snapshot, visits []time.Time, serviceID string) (float64, string) {
	if gap, ok := meanGapDays(visits); ok {
		return gap, "client history"
	}
	if svc := snap.ServiceByID(serviceID); svc != nil && svc.RebookIntervalDays > 0 {
		return float64(svc.RebookIntervalDays), "category default"
	}
	return 0, ""
}

// serviceVisits returns the client's completed visit times for one service,
// oldest first.
func serviceVisits(snap *types.Snapshot, clientID, serviceID string) []time.Time {
	var visits []time.Time
	for _, b := range snap.Bookings {
		if b.ClientID == clientID && b.ServiceID == serviceID && b.Status == types.BookingCompleted {
			visits = append(visits, b.Start)
		}
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].Before(visits[j]) })
	return visits
}

// clientServices lists the distinct services the client has completed, in
// first-seen order.
func clientServices(snap *types.Snapshot, clientID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range snap.Bookings {
		if b.ClientID != clientID || b.Status != types.BookingCompleted || seen[b.ServiceID] {
			continue
		}
		seen[b.ServiceID] = true
		out = append(out, b.ServiceID)
	}
	return out
}
