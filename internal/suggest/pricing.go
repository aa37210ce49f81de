package suggest

import (
	"fmt"
	"time"

	"solari/internal/types"
)

const (
	pricingWindowDays = 60

	pricingRaiseFill    = 0.85
	pricingDiscountFill = 0.50

	// pricingMinBookings keeps the engine quiet until the window holds
	// enough data to make fill-rates meaningful.
	pricingMinBookings = 5
)

// PricingEngine computes per-weekday fill-rates over a trailing window:
// the weekday's mean daily bookings divided by the busiest single day
// observed anywhere in the window. Consistently full weekdays suggest a
// price increase, consistently empty ones a discount.
type PricingEngine struct{}

func (e *PricingEngine) Name() string { return "dynamic_pricing" }

func (e *PricingEngine) Run(snap *types.Snapshot) []types.Suggestion {
	cutoff := snap.Now.AddDate(0, 0, -pricingWindowDays)

	// Daily booking counts inside the window, cancelled excluded.
	perDay := make(map[string]int)
	total := 0
	for _, b := range snap.Bookings {
		if b.Status == types.BookingCancelled {
			continue
		}
		if b.Start.Before(cutoff) || b.Start.After(snap.Now) {
			continue
		}
		perDay[b.Start.Format("2006-01-02")]++
		total++
	}
	if total < pricingMinBookings {
		return nil
	}

	peak := 0
	for _, n := range perDay {
		if n > peak {
			peak = n
		}
	}
	if peak == 0 {
		return nil
	}

	var out []types.Suggestion
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		sum, occurrences := weekdayLoad(perDay, cutoff, snap.Now, wd)
		if occurrences == 0 {
			continue
		}
		mean := float64(sum) / float64(occurrences)
		fill := mean / float64(peak)

		why := []string{
			fmt.Sprintf("%d bookings across %d %ss in the last %d days (mean %.1f/day)", sum, occurrences, wd, pricingWindowDays, mean),
			fmt.Sprintf("busiest single day in the window held %d bookings", peak),
			fmt.Sprintf("%s fill-rate is %.2f", wd, fill),
		}

		switch {
		case fill >= pricingRaiseFill:
			out = append(out, newSuggestion(
				e.Name(),
				fmt.Sprintf("%ss are nearly full", wd),
				fmt.Sprintf("%ss run at %.0f%% of peak capacity. A modest price increase would not cost volume.", wd, fill*100),
				types.SeverityInfo,
				why,
				types.SuggestedAction{
					Label:   fmt.Sprintf("Review %s pricing", wd),
					Intent:  "admin.set_price",
					Payload: map[string]any{"weekday": wd.String(), "direction": "raise"},
				},
			))
		case fill <= pricingDiscountFill:
			out = append(out, newSuggestion(
				e.Name(),
				fmt.Sprintf("%ss are underbooked", wd),
				fmt.Sprintf("%ss run at %.0f%% of peak capacity. A targeted discount could lift them.", wd, fill*100),
				types.SeverityInfo,
				why,
				types.SuggestedAction{
					Label:   fmt.Sprintf("Discount %s slots", wd),
					Intent:  "admin.set_price",
					Payload: map[string]any{"weekday": wd.String(), "direction": "discount"},
				},
			))
		}
	}
	return out
}

// weekdayLoad sums the daily counts for every occurrence of wd inside
// (cutoff, now], counting empty days as zero-booking occurrences.
func weekdayLoad(perDay map[string]int, cutoff, now time.Time, wd time.Weekday) (sum, occurrences int) {
	for d := cutoff.AddDate(0, 0, 1); !d.After(now); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != wd {
			continue
		}
		occurrences++
		sum += perDay[d.Format("2006-01-02")]
	}
	return sum, occurrences
}
