package spine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"solari/internal/types"
)

// keywordPattern couples a compiled expression with the confidence a match
// earns. Patterns are matched case-insensitively.
type keywordPattern struct {
	re         *regexp.Regexp
	confidence float64
}

func kw(confidence float64, expr string) keywordPattern {
	return keywordPattern{re: regexp.MustCompile(`(?i)` + expr), confidence: confidence}
}

// matchIntent returns the intent candidate for the best-scoring pattern, if
// any pattern matches. Pattern order decides ties, so the result is
// deterministic for identical text.
func matchIntent(spineName, intentName, text string, pats []keywordPattern) (types.Intent, bool) {
	best := types.Intent{Spine: spineName, Name: intentName}
	found := false
	for _, p := range pats {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if !found || p.confidence > best.Confidence {
			best.Confidence = p.confidence
			best.MatchedText = text[loc[0]:loc[1]]
			found = true
		}
	}
	return best, found
}

// =============================================================================
// ENTITY PATTERNS
// =============================================================================

// findClient returns the snapshot client whose name appears in the text,
// preferring the longest (most specific) match.
func findClient(text string, snap *types.Snapshot) *types.Client {
	if snap == nil {
		return nil
	}
	lower := strings.ToLower(text)
	var best *types.Client
	bestLen := 0
	for i := range snap.Clients {
		name := strings.ToLower(snap.Clients[i].Name)
		if name != "" && strings.Contains(lower, name) && len(name) > bestLen {
			best = &snap.Clients[i]
			bestLen = len(name)
		}
	}
	return best
}

// findService returns the snapshot service whose name appears in the text,
// preferring the longest match.
func findService(text string, snap *types.Snapshot) *types.Service {
	if snap == nil {
		return nil
	}
	lower := strings.ToLower(text)
	var best *types.Service
	bestLen := 0
	for i := range snap.Services {
		name := strings.ToLower(snap.Services[i].Name)
		if name != "" && strings.Contains(lower, name) && len(name) > bestLen {
			best = &snap.Services[i]
			bestLen = len(name)
		}
	}
	return best
}

var amountRe = regexp.MustCompile(`(?i)(?:\$\s*|(?:refund|charge|capture|price|for)\s+\$?\s*)(\d+(?:\.\d{1,2})?)`)

// findAmount extracts a money amount from the text.
func findAmount(text string) (float64, bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	timeRe    = regexp.MustCompile(`(?i)\b(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	weekdays  = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	weekdayRe = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
)

// findWeekday returns the weekday named in the text.
func findWeekday(text string) (time.Weekday, bool) {
	m := weekdayRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	name := strings.ToLower(m[1])
	for i, w := range weekdays {
		if w == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// findStart resolves a requested start time relative to the snapshot clock.
// Dates come from "today", "tomorrow", or a weekday name; "monday" on a
// Monday means today. The time of day defaults to 10:00 when only a date is
// given.
func findStart(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	var date time.Time
	haveDate := false
	switch {
	case strings.Contains(lower, "today"), strings.Contains(lower, "same day"):
		date = now
		haveDate = true
	case strings.Contains(lower, "tomorrow"):
		date = now.AddDate(0, 0, 1)
		haveDate = true
	default:
		if wd, ok := findWeekday(lower); ok {
			ahead := (int(wd) - int(now.Weekday()) + 7) % 7
			date = now.AddDate(0, 0, ahead)
			haveDate = true
		}
	}
	if !haveDate {
		return time.Time{}, false
	}

	hour, minute := 10, 0
	if m := timeRe.FindStringSubmatch(lower); m != nil {
		h, err := strconv.Atoi(m[1])
		if err == nil && h <= 23 {
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			switch strings.ToLower(m[3]) {
			case "pm":
				if h < 12 {
					h += 12
				}
			case "am":
				if h == 12 {
					h = 0
				}
			case "":
				// Bare small hours like "at 3" mean afternoon at a front desk.
				if h >= 1 && h <= 7 {
					h += 12
				}
			}
			if h <= 23 && minute <= 59 {
				hour = h
			}
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, now.Location()), true
}

var quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// findQuoted returns the first quoted span in the text.
func findQuoted(text string) (string, bool) {
	m := quotedRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// audiences the campaigns spine understands, checked in order.
var audiencePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"lapsed", regexp.MustCompile(`(?i)\b(lapsed|inactive|lost)\b`)},
	{"vip", regexp.MustCompile(`(?i)\b(vip|top|best)\b`)},
	{"upcoming", regexp.MustCompile(`(?i)\b(upcoming|booked)\b`)},
	{"all", regexp.MustCompile(`(?i)\b(everyone|all clients|everybody|all)\b`)},
}

// findAudience maps the text to a named campaign audience.
func findAudience(text string) (string, bool) {
	for _, a := range audiencePatterns {
		if a.re.MatchString(text) {
			return a.name, true
		}
	}
	return "", false
}

// upcomingBookingFor returns the client's single upcoming booking, if there
// is exactly one. Ambiguity means the booking id stays unresolved.
func upcomingBookingFor(clientID string, snap *types.Snapshot) *types.Booking {
	var found *types.Booking
	for i := range snap.Bookings {
		b := &snap.Bookings[i]
		if b.ClientID != clientID || b.Status != types.BookingUpcoming {
			continue
		}
		if found != nil {
			return nil
		}
		found = b
	}
	return found
}
