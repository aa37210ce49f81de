package suggest

import (
	"fmt"

	"solari/internal/types"
)

const (
	// churnMinVisits is the history floor below which cadence is meaningless.
	churnMinVisits = 3

	churnInfoMultiple = 1.4
	churnWarnMultiple = 2.0
)

// ChurnEngine compares each client's current lapse against their own visit
// cadence. A regular every-30-days client who has been away 50 days is at
// risk even though 50 days would be normal for someone else.
type ChurnEngine struct{}

func (e *ChurnEngine) Name() string { return "churn_detection" }

func (e *ChurnEngine) Run(snap *types.Snapshot) []types.Suggestion {
	var out []types.Suggestion
	for _, c := range snap.Clients {
		if hasUpcoming(snap, c.ID, "") {
			continue
		}
		visits := completedVisits(snap, c.ID)
		if len(visits) < churnMinVisits {
			continue
		}
		cadence, ok := meanGapDays(visits)
		if !ok || cadence <= 0 {
			continue
		}
		lapse := days(visits[len(visits)-1], snap.Now)
		if lapse <= cadence*churnInfoMultiple {
			continue
		}

		severity := types.SeverityInfo
		if lapse > cadence*churnWarnMultiple {
			severity = types.SeverityWarn
		}
		out = append(out, newSuggestion(
			e.Name(),
			"Client drifting away",
			fmt.Sprintf("%s usually visits every %.0f days but has been away %.0f days.", c.Name, cadence, lapse),
			severity,
			[]string{
				fmt.Sprintf("average visit cadence is %.0f days over %d completed visits", cadence, len(visits)),
				fmt.Sprintf("last visit was %.0f days ago", lapse),
				fmt.Sprintf("lapse %.0f exceeds %.1fx cadence (%.0f days)", lapse, churnInfoMultiple, cadence*churnInfoMultiple),
			},
			types.SuggestedAction{
				Label:   "Reach out to " + c.Name,
				Intent:  "campaigns.send",
				Payload: map[string]any{"client_id": c.ID},
			},
		))
	}
	return out
}
