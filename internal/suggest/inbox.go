package suggest

import (
	"fmt"

	"solari/internal/types"
)

const (
	// inboxStaleHours is how long an inbound message may wait before it
	// counts as unanswered.
	inboxStaleHours = 24.0

	// inboxUrgentHours escalates the suggestion to a warning.
	inboxUrgentHours = 72.0
)

// InboxEngine surfaces clients whose inbound messages have been waiting for
// a reply, one suggestion per client.
type InboxEngine struct{}

func (e *InboxEngine) Name() string { return "unanswered_inbox" }

func (e *InboxEngine) Run(snap *types.Snapshot) []types.Suggestion {
	type pending struct {
		count       int
		oldestHours float64
	}
	byClient := make(map[string]*pending)
	var order []string

	for _, m := range snap.Messages {
		if m.Direction != types.MessageIn || m.Answered {
			continue
		}
		age := snap.Now.Sub(m.SentAt).Hours()
		if age < inboxStaleHours {
			continue
		}
		p, ok := byClient[m.ClientID]
		if !ok {
			p = &pending{}
			byClient[m.ClientID] = p
			order = append(order, m.ClientID)
		}
		p.count++
		if age > p.oldestHours {
			p.oldestHours = age
		}
	}

	var out []types.Suggestion
	for _, clientID := range order {
		p := byClient[clientID]
		name := clientLabel(snap, clientID)

		severity := types.SeverityInfo
		if p.oldestHours >= inboxUrgentHours {
			severity = types.SeverityWarn
		}
		out = append(out, newSuggestion(
			e.Name(),
			"Unanswered messages from "+name,
			fmt.Sprintf("%s has %d unanswered message(s); the oldest has waited %.0f hours.", name, p.count, p.oldestHours),
			severity,
			[]string{
				fmt.Sprintf("%d inbound message(s) have no reply", p.count),
				fmt.Sprintf("oldest has waited %.0f hours (threshold %.0f)", p.oldestHours, inboxStaleHours),
			},
		))
	}
	return out
}
