package spine

import (
	"fmt"

	"solari/internal/types"
)

var campaignsSendPatterns = []keywordPattern{
	kw(0.90, `\b(campaign|blast|promo(?:tion)?)\b`),
	kw(0.78, `\b(text|message|notify|remind)\b.*\b(everyone|all|lapsed|vips?)\b`),
	kw(0.60, `\bsend\b`),
}

var campaignsPreviewPatterns = []keywordPattern{
	kw(0.90, `\bpreview\b`),
	kw(0.75, `\bwho (?:would|will) (?:get|receive)\b`),
}

func campaignsModule() *Module {
	return &Module{
		Name:      "campaigns",
		Detect:    campaignsDetect,
		Extract:   campaignsExtract,
		BuildFlow: campaignsBuildFlow,
	}
}

func campaignsDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	if in, ok := matchIntent("campaigns", "preview", text, campaignsPreviewPatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("campaigns", "send", text, campaignsSendPatterns); ok {
		out = append(out, in)
	}
	return out
}

func campaignsExtract(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	res := types.NewExtractionResult()

	if audience, ok := findAudience(text); ok {
		res.Entities["audience"] = audience
	} else {
		res.AddMissing("audience")
	}

	if intent.Name == "send" {
		if msg, ok := findQuoted(text); ok {
			res.Entities["message"] = msg
		} else {
			res.AddMissing("message")
		}
	}
	return res
}

func campaignsBuildFlow(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	if !extraction.Complete() {
		return askSteps(extraction)
	}

	audience := extraction.Entities["audience"]

	switch intent.Name {
	case "send":
		// Mass notification cannot be unsent: always compile a Confirm.
		return []types.FlowStep{
			types.Confirm(fmt.Sprintf("Send %q to the %v audience?", extraction.Entities["message"], audience)),
			types.ToolCall("campaigns.send", map[string]any{
				"audience": audience,
				"message":  extraction.Entities["message"],
			}),
			types.Respond(fmt.Sprintf("Campaign sent to the %v audience.", audience)),
		}
	case "preview":
		return []types.FlowStep{
			types.ToolCall("campaigns.preview", map[string]any{
				"audience": audience,
			}),
			types.Respond(fmt.Sprintf("Preview ready for the %v audience.", audience)),
		}
	}
	return []types.FlowStep{types.Respond(fmt.Sprintf("Unknown campaigns operation %q.", intent.Name))}
}
