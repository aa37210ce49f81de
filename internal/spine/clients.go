package spine

import (
	"fmt"
	"regexp"
	"strings"

	"solari/internal/types"
)

var clientsUpdatePatterns = []keywordPattern{
	kw(0.85, `\bupdate\b.*\b(phone|email|number|contact)\b`),
	kw(0.82, `\b(new|change[ds]?)\b.*\b(phone|email|number)\b`),
}

var clientsMergePatterns = []keywordPattern{
	kw(0.92, `\bmerge\b`),
	kw(0.75, `\bduplicate (?:client|profile)s?\b`),
}

var clientsSuspendPatterns = []keywordPattern{
	kw(0.92, `\bsuspend\b`),
	kw(0.85, `\b(block|ban)\b`),
}

var (
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

func clientsModule() *Module {
	return &Module{
		Name:      "clients",
		Detect:    clientsDetect,
		Extract:   clientsExtract,
		BuildFlow: clientsBuildFlow,
	}
}

func clientsDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	if in, ok := matchIntent("clients", "merge", text, clientsMergePatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("clients", "suspend", text, clientsSuspendPatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("clients", "update", text, clientsUpdatePatterns); ok {
		out = append(out, in)
	}
	return out
}

func clientsExtract(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	res := types.NewExtractionResult()

	client := findClient(text, snap)
	if client != nil {
		res.Entities["client_id"] = client.ID
		res.Entities["client_name"] = client.Name
	}

	switch intent.Name {
	case "update":
		if client == nil {
			res.AddMissing("client")
		}
		if email := emailRe.FindString(text); email != "" {
			res.Entities["field"] = "email"
			res.Entities["value"] = email
		} else if phone := phoneRe.FindString(text); phone != "" {
			res.Entities["field"] = "phone"
			res.Entities["value"] = strings.TrimSpace(phone)
		} else {
			res.AddMissing("contact")
		}

	case "merge":
		primary, duplicate := findTwoClients(text, snap)
		if primary == nil || duplicate == nil {
			if client == nil {
				res.AddMissing("client")
			}
			res.AddMissing("duplicate")
			break
		}
		res.Entities["client_id"] = primary.ID
		res.Entities["client_name"] = primary.Name
		res.Entities["duplicate_id"] = duplicate.ID
		res.Entities["duplicate_name"] = duplicate.Name

	case "suspend":
		if client == nil {
			res.AddMissing("client")
		}
	}
	return res
}

// findTwoClients resolves a "merge A into B" request: B (the target written
// last) is primary, A is the duplicate. Requires two distinct snapshot
// clients named in the text.
func findTwoClients(text string, snap *types.Snapshot) (primary, duplicate *types.Client) {
	lower := strings.ToLower(text)
	type hit struct {
		client *types.Client
		pos    int
	}
	var hits []hit
	for i := range snap.Clients {
		name := strings.ToLower(snap.Clients[i].Name)
		if name == "" {
			continue
		}
		if pos := strings.Index(lower, name); pos >= 0 {
			hits = append(hits, hit{client: &snap.Clients[i], pos: pos})
		}
	}
	if len(hits) < 2 {
		return nil, nil
	}
	// Earliest mention is the duplicate being folded in; latest is the
	// surviving profile.
	first, last := hits[0], hits[0]
	for _, h := range hits[1:] {
		if h.pos < first.pos {
			first = h
		}
		if h.pos > last.pos {
			last = h
		}
	}
	if first.client.ID == last.client.ID {
		return nil, nil
	}
	return last.client, first.client
}

func clientsBuildFlow(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	if !extraction.Complete() {
		return askSteps(extraction)
	}

	name := extraction.Entities["client_name"]

	switch intent.Name {
	case "update":
		return []types.FlowStep{
			types.ToolCall("clients.update", map[string]any{
				"client_id": extraction.Entities["client_id"],
				"field":     extraction.Entities["field"],
				"value":     extraction.Entities["value"],
			}),
			types.Respond(fmt.Sprintf("Updated %v's %v.", name, extraction.Entities["field"])),
		}
	case "merge":
		return []types.FlowStep{
			types.ToolCall("clients.merge", map[string]any{
				"client_id":    extraction.Entities["client_id"],
				"duplicate_id": extraction.Entities["duplicate_id"],
			}),
			types.Respond(fmt.Sprintf("Merged %v into %v.",
				extraction.Entities["duplicate_name"], name)),
		}
	case "suspend":
		// Suspension locks a client out; never compile it without a Confirm.
		return []types.FlowStep{
			types.Confirm(fmt.Sprintf("Suspend %v's account?", name)),
			types.ToolCall("clients.suspend", map[string]any{
				"client_id": extraction.Entities["client_id"],
			}),
			types.Respond(fmt.Sprintf("Suspended %v.", name)),
		}
	}
	return []types.FlowStep{types.Respond(fmt.Sprintf("Unknown clients operation %q.", intent.Name))}
}
