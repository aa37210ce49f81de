package suggest

import (
	"fmt"
	"time"

	"solari/internal/types"
)

// No-show scoring weights. The four factors are each in [0,1]; the weighted
// sum is clipped to [0,1] before thresholding.
const (
	noShowWeightLead    = 0.30
	noShowWeightHistory = 0.40
	noShowWeightDay     = 0.15
	noShowWeightLapse   = 0.15

	noShowThreshold = 0.65
	noShowCritical  = 0.80

	// lapseHorizonDays is where the lapse factor saturates.
	lapseHorizonDays = 90.0
)

// NoShowEngine scores every upcoming booking for no-show risk: how recently
// it was made, the client's no-show history, the weekday, and how long the
// client has been away. Scores at or above the threshold emit a suggestion.
type NoShowEngine struct{}

func (e *NoShowEngine) Name() string { return "no_show_risk" }

func (e *NoShowEngine) Run(snap *types.Snapshot) []types.Suggestion {
	var out []types.Suggestion
	for _, b := range snap.Bookings {
		if b.Status != types.BookingUpcoming {
			continue
		}
		score, why := e.score(snap, b)
		if score < noShowThreshold {
			continue
		}
		severity := types.SeverityWarn
		if score >= noShowCritical {
			severity = types.SeverityCritical
		}
		name := clientLabel(snap, b.ClientID)
		out = append(out, newSuggestion(
			e.Name(),
			"High no-show risk",
			fmt.Sprintf("%s's %s appointment scores %.2f for no-show risk. Consider a reminder or a deposit.",
				name, b.Start.Format("Jan 2 15:04"), score),
			severity,
			why,
			types.SuggestedAction{
				Label:   "Send reminder to " + name,
				Intent:  "campaigns.send",
				Payload: map[string]any{"client_id": b.ClientID, "booking_id": b.ID},
			},
		))
	}
	return out
}

// score computes the weighted risk and the derivation trail. Every factor
// contributes one Why line regardless of its value, so the trail always
// names all four inputs.
func (e *NoShowEngine) score(snap *types.Snapshot, b types.Booking) (float64, []string) {
	lead := leadTimeFactor(b.CreatedAt, b.Start)
	history, noShows, past := historyFactor(snap, b.ClientID)
	day := weekdayFactor(b.Start.Weekday())
	lapse, lapseDays := lapseFactor(snap, b.ClientID)

	score := clip(noShowWeightLead*lead +
		noShowWeightHistory*history +
		noShowWeightDay*day +
		noShowWeightLapse*lapse)

	why := []string{
		fmt.Sprintf("booked %.1f days before the slot (lead-time factor %.2f)", days(b.CreatedAt, b.Start), lead),
		fmt.Sprintf("%d of %d past appointments were no-shows (history factor %.2f)", noShows, past, history),
		fmt.Sprintf("%s slots carry elevated no-show history (day factor %.2f)", b.Start.Weekday(), day),
		fmt.Sprintf("last completed visit %.0f days ago (lapse factor %.2f)", lapseDays, lapse),
	}
	return score, why
}

// leadTimeFactor is highest for same-day bookings and decays with notice.
func leadTimeFactor(created, start time.Time) float64 {
	lead := days(created, start)
	switch {
	case lead < 1:
		return 1.0
	case lead < 3:
		return 0.5
	case lead < 7:
		return 0.3
	default:
		return 0.1
	}
}

// historyFactor is the client's past no-show rate over terminal bookings.
func historyFactor(snap *types.Snapshot, clientID string) (factor float64, noShows, past int) {
	for _, b := range snap.Bookings {
		if b.ClientID != clientID {
			continue
		}
		switch b.Status {
		case types.BookingCompleted, types.BookingNoShow:
			past++
			if b.Status == types.BookingNoShow {
				noShows++
			}
		}
	}
	if past == 0 {
		return 0, 0, 0
	}
	return float64(noShows) / float64(past), noShows, past
}

// weekdayFactor reflects which weekdays historically see the most no-shows:
// Mondays worst, weekend-adjacent days elevated.
func weekdayFactor(d time.Weekday) float64 {
	switch d {
	case time.Monday:
		return 1.0
	case time.Friday, time.Saturday:
		return 0.6
	default:
		return 0.2
	}
}

// lapseFactor grows with time since the client's last completed visit,
// saturating at the horizon. Clients with no history score zero here; the
// history factor already covers them.
func lapseFactor(snap *types.Snapshot, clientID string) (factor, lapseDays float64) {
	visits := completedVisits(snap, clientID)
	if len(visits) == 0 {
		return 0, 0
	}
	lapseDays = days(visits[len(visits)-1], snap.Now)
	return clip(lapseDays / lapseHorizonDays), lapseDays
}
