package spine

import (
	"fmt"
	"regexp"
	"strings"

	"solari/internal/types"
)

var adminSetHoursPatterns = []keywordPattern{
	kw(0.90, `\b(opening|business) hours\b`),
	kw(0.80, `\bopen\b.*\b(from|until|till)\b`),
	kw(0.70, `\bhours\b`),
}

var adminSetPricePatterns = []keywordPattern{
	kw(0.90, `\b(price|pricing)\b`),
	kw(0.75, `\bcosts?\b`),
}

var adminTogglePatterns = []keywordPattern{
	kw(0.88, `\b(enable|disable)\b`),
	kw(0.85, `\bturn (?:on|off)\b`),
}

var (
	hoursRangeRe = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)?\s*(?:-|to|until|till)\s*\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`)
	settingRe    = regexp.MustCompile(`(?i)\b(?:enable|disable|turn on|turn off)\s+(?:the\s+)?([a-z][a-z_ -]*[a-z])`)
)

func adminModule() *Module {
	return &Module{
		Name:      "admin",
		Detect:    adminDetect,
		Extract:   adminExtract,
		BuildFlow: adminBuildFlow,
	}
}

func adminDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	if in, ok := matchIntent("admin", "toggle", text, adminTogglePatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("admin", "set_hours", text, adminSetHoursPatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("admin", "set_price", text, adminSetPricePatterns); ok {
		out = append(out, in)
	}
	return out
}

func adminExtract(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	res := types.NewExtractionResult()

	switch intent.Name {
	case "set_hours":
		if wd, ok := findWeekday(text); ok {
			res.Entities["day"] = strings.ToLower(wd.String())
		} else {
			res.AddMissing("day")
		}
		if hours := hoursRangeRe.FindString(text); hours != "" {
			res.Entities["hours"] = strings.TrimSpace(hours)
		} else {
			res.AddMissing("hours")
		}

	case "set_price":
		if svc := findService(text, snap); svc != nil {
			res.Entities["service_id"] = svc.ID
			res.Entities["service_name"] = svc.Name
		} else {
			res.AddMissing("service")
		}
		if amount, ok := findAmount(text); ok {
			res.Entities["price"] = amount
		} else {
			res.AddMissing("price")
		}

	case "toggle":
		if m := settingRe.FindStringSubmatch(text); m != nil {
			res.Entities["setting"] = strings.ToLower(strings.TrimSpace(m[1]))
		} else {
			res.AddMissing("setting")
		}
		lower := strings.ToLower(text)
		res.Entities["enabled"] = strings.Contains(lower, "enable") || strings.Contains(lower, "turn on")
	}
	return res
}

func adminBuildFlow(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	if !extraction.Complete() {
		return askSteps(extraction)
	}

	switch intent.Name {
	case "set_hours":
		return []types.FlowStep{
			types.ToolCall("admin.set_hours", map[string]any{
				"day":   extraction.Entities["day"],
				"hours": extraction.Entities["hours"],
			}),
			types.Respond(fmt.Sprintf("Hours for %v set to %v.",
				extraction.Entities["day"], extraction.Entities["hours"])),
		}
	case "set_price":
		return []types.FlowStep{
			types.ToolCall("admin.set_price", map[string]any{
				"service_id": extraction.Entities["service_id"],
				"price":      extraction.Entities["price"],
			}),
			types.Respond(fmt.Sprintf("Price for %v set to $%.2f.",
				extraction.Entities["service_name"], extraction.Entities["price"])),
		}
	case "toggle":
		verb := "Disable"
		if enabled, _ := extraction.Entities["enabled"].(bool); enabled {
			verb = "Enable"
		}
		// Config flips change live behavior for every operator: Confirm first.
		return []types.FlowStep{
			types.Confirm(fmt.Sprintf("%s the %v setting?", verb, extraction.Entities["setting"])),
			types.ToolCall("admin.toggle", map[string]any{
				"setting": extraction.Entities["setting"],
				"enabled": extraction.Entities["enabled"],
			}),
			types.Respond(fmt.Sprintf("%sd %v.", verb, extraction.Entities["setting"])),
		}
	}
	return []types.FlowStep{types.Respond(fmt.Sprintf("Unknown admin operation %q.", intent.Name))}
}
