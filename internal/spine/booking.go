package spine

import (
	"fmt"
	"time"

	"solari/internal/types"
)

var bookingCreatePatterns = []keywordPattern{
	kw(0.92, `\bbook\b`),
	kw(0.85, `\b(appointment|booking|slot)\b`),
	kw(0.70, `\bschedule\b`),
	kw(0.65, `\bfit (?:in|her|him|them) in\b`),
}

var bookingReschedulePatterns = []keywordPattern{
	kw(0.95, `\breschedule\b`),
	kw(0.80, `\bmove\b.*\b(appointment|booking)\b`),
	kw(0.75, `\bpush\b.*\b(appointment|booking)\b`),
}

var bookingCancelPatterns = []keywordPattern{
	kw(0.90, `\bcancel\b.*\b(appointment|booking)\b`),
	kw(0.72, `\bcancel\b`),
	kw(0.70, `\bcall off\b`),
}

func bookingModule() *Module {
	return &Module{
		Name:      "booking",
		Detect:    bookingDetect,
		Extract:   bookingExtract,
		BuildFlow: bookingBuildFlow,
	}
}

func bookingDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	// Reschedule first: "reschedule" outranks the generic booking verbs and
	// must not be shadowed by them.
	if in, ok := matchIntent("booking", "reschedule", text, bookingReschedulePatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("booking", "cancel", text, bookingCancelPatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("booking", "create", text, bookingCreatePatterns); ok {
		out = append(out, in)
	}
	return out
}

func bookingExtract(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	res := types.NewExtractionResult()

	client := findClient(text, snap)
	if client != nil {
		res.Entities["client_id"] = client.ID
		res.Entities["client_name"] = client.Name
	}

	switch intent.Name {
	case "create":
		if client == nil {
			res.AddMissing("client")
		}
		if svc := findService(text, snap); svc != nil {
			res.Entities["service_id"] = svc.ID
			res.Entities["service_name"] = svc.Name
		} else {
			res.AddMissing("service")
		}
		if start, ok := findStart(text, snap.Now); ok {
			res.Entities["start"] = start.Format(time.RFC3339)
		} else {
			res.AddMissing("start")
		}

	case "reschedule":
		resolveBookingID(&res, client, snap)
		if start, ok := findStart(text, snap.Now); ok {
			res.Entities["start"] = start.Format(time.RFC3339)
		} else {
			res.AddMissing("start")
		}

	case "cancel":
		resolveBookingID(&res, client, snap)
	}
	return res
}

// resolveBookingID fills booking_id from the client's single upcoming
// booking. No client, no upcoming booking, or more than one upcoming booking
// all leave the field missing.
func resolveBookingID(res *types.ExtractionResult, client *types.Client, snap *types.Snapshot) {
	if client == nil {
		res.AddMissing("client")
		res.AddMissing("booking_id")
		return
	}
	if b := upcomingBookingFor(client.ID, snap); b != nil {
		res.Entities["booking_id"] = b.ID
		return
	}
	res.AddMissing("booking_id")
}

func bookingBuildFlow(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	if !extraction.Complete() {
		return askSteps(extraction)
	}

	switch intent.Name {
	case "create":
		return []types.FlowStep{
			types.ToolCall("booking.create", map[string]any{
				"client_id":  extraction.Entities["client_id"],
				"service_id": extraction.Entities["service_id"],
				"start":      extraction.Entities["start"],
			}),
			types.Respond(fmt.Sprintf("Booked %v for %v at %v.",
				extraction.Entities["client_name"],
				extraction.Entities["service_name"],
				extraction.Entities["start"])),
		}
	case "reschedule":
		return []types.FlowStep{
			types.ToolCall("booking.reschedule", map[string]any{
				"booking_id": extraction.Entities["booking_id"],
				"start":      extraction.Entities["start"],
			}),
			types.Respond(fmt.Sprintf("Moved booking %v to %v.",
				extraction.Entities["booking_id"],
				extraction.Entities["start"])),
		}
	case "cancel":
		return []types.FlowStep{
			types.ToolCall("booking.cancel", map[string]any{
				"booking_id": extraction.Entities["booking_id"],
			}),
			types.Respond(fmt.Sprintf("Cancelled booking %v.", extraction.Entities["booking_id"])),
		}
	}
	return []types.FlowStep{types.Respond(fmt.Sprintf("Unknown booking operation %q.", intent.Name))}
}

// askSteps compiles one Ask per missing field, in extraction order.
func askSteps(extraction types.ExtractionResult) []types.FlowStep {
	steps := make([]types.FlowStep, 0, len(extraction.Missing))
	for _, field := range extraction.Missing {
		steps = append(steps, types.Ask(field))
	}
	return steps
}
