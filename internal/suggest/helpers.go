package suggest

import (
	"sort"
	"time"

	"solari/internal/types"
)

// days returns the fractional number of days from a to b.
func days(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// completedVisits returns the start times of a client's completed bookings,
// oldest first.
func completedVisits(snap *types.Snapshot, clientID string) []time.Time {
	var visits []time.Time
	for _, b := range snap.Bookings {
		if b.ClientID == clientID && b.Status == types.BookingCompleted {
			visits = append(visits, b.Start)
		}
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].Before(visits[j]) })
	return visits
}

// meanGapDays averages the gaps between consecutive visit times. It needs at
// least two visits; ok is false otherwise.
func meanGapDays(visits []time.Time) (float64, bool) {
	if len(visits) < 2 {
		return 0, false
	}
	total := 0.0
	for i := 1; i < len(visits); i++ {
		total += days(visits[i-1], visits[i])
	}
	return total / float64(len(visits)-1), true
}

// hasUpcoming reports whether the client has any upcoming booking, optionally
// restricted to one service (empty serviceID matches any).
func hasUpcoming(snap *types.Snapshot, clientID, serviceID string) bool {
	for _, b := range snap.Bookings {
		if b.ClientID != clientID || b.Status != types.BookingUpcoming {
			continue
		}
		if serviceID == "" || b.ServiceID == serviceID {
			return true
		}
	}
	return false
}

// clientLabel prefers the client's name for display, falling back to the ID.
func clientLabel(snap *types.Snapshot, clientID string) string {
	if c := snap.ClientByID(clientID); c != nil {
		return c.Name
	}
	return clientID
}

// serviceLabel prefers the service's name for display, falling back to the ID.
func serviceLabel(snap *types.Snapshot, serviceID string) string {
	if s := snap.ServiceByID(serviceID); s != nil {
		return s.Name
	}
	return serviceID
}

// clip bounds v to [0,1].
func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
