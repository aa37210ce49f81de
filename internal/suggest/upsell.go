package suggest

import (
	"fmt"

	"solari/internal/types"
)

// upsellMinPairings is the co-occurrence floor: a pairing must have been
// bought together this many times before it is worth suggesting.
const upsellMinPairings = 2

// UpsellEngine looks at what other clients book alongside each service and
// proposes the strongest pairing for upcoming appointments that lack it.
type UpsellEngine struct{}

func (e *UpsellEngine) Name() string { return "upsell_pairing" }

func (e *UpsellEngine) Run(snap *types.Snapshot) []types.Suggestion {
	pairs := pairingCounts(snap)

	var out []types.Suggestion
	for _, b := range snap.Bookings {
		if b.Status != types.BookingUpcoming {
			continue
		}
		partner, count := bestPartner(pairs, b.ServiceID)
		if partner == "" || count < upsellMinPairings {
			continue
		}
		if bookedSameDay(snap, b, partner) {
			continue
		}

		name := clientLabel(snap, b.ClientID)
		svcName := serviceLabel(snap, b.ServiceID)
		partnerName := serviceLabel(snap, partner)
		out = append(out, newSuggestion(
			e.Name(),
			fmt.Sprintf("Pair %s with %s", svcName, partnerName),
			fmt.Sprintf("%s has %s booked on %s; %s is often added alongside it.",
				name, svcName, b.Start.Format("Jan 2"), partnerName),
			types.SeverityInfo,
			[]string{
				fmt.Sprintf("%s and %s were completed together %d times", svcName, partnerName, count),
				fmt.Sprintf("%s's %s visit has no %s attached", name, svcName, partnerName),
			},
			types.SuggestedAction{
				Label:   fmt.Sprintf("Add %s for %s", partnerName, name),
				Intent:  "booking.create",
				Payload: map[string]any{"client_id": b.ClientID, "service_id": partner},
			},
		))
	}
	return out
}

// pairingCounts tallies how often each ordered service pair was completed by
// the same client on the same day.
func pairingCounts(snap *types.Snapshot) map[string]map[string]int {
	type key struct {
		client string
		day    string
	}
	perVisit := make(map[key][]string)
	for _, b := range snap.Bookings {
		if b.Status != types.BookingCompleted {
			continue
		}
		k := key{client: b.ClientID, day: b.Start.Format("2006-01-02")}
		perVisit[k] = append(perVisit[k], b.ServiceID)
	}

	counts := make(map[string]map[string]int)
	bump := func(a, b string) {
		if counts[a] == nil {
			counts[a] = make(map[string]int)
		}
		counts[a][b]++
	}
	for _, services := range perVisit {
		for i := 0; i < len(services); i++ {
			for j := 0; j < len(services); j++ {
				if i != j && services[i] != services[j] {
					bump(services[i], services[j])
				}
			}
		}
	}
	return counts
}

// bestPartner returns the most frequent co-service, ties broken by the
// lexically smaller ID so output stays deterministic.
func bestPartner(pairs map[string]map[string]int, serviceID string) (string, int) {
	best, bestN := "", 0
	for partner, n := range pairs[serviceID] {
		if n > bestN || (n == bestN && partner < best) {
			best, bestN = partner, n
		}
	}
	return best, bestN
}

// bookedSameDay reports whether the booking's client already has the partner
// service on the same calendar day.
func bookedSameDay(snap *types.Snapshot, b types.Booking, partner string) bool {
	day := b.Start.Format("2006-01-02")
	for _, other := range snap.Bookings {
		if other.ID == b.ID || other.ClientID != b.ClientID {
			continue
		}
		if other.ServiceID == partner && other.Start.Format("2006-01-02") == day && other.Status != types.BookingCancelled {
			return true
		}
	}
	return false
}
