package spine

import (
	"fmt"

	"solari/internal/types"
)

var paymentsRefundPatterns = []keywordPattern{
	kw(0.95, `\brefund\b`),
	kw(0.80, `\b(money|payment) back\b`),
}

var paymentsCapturePatterns = []keywordPattern{
	kw(0.90, `\bcapture\b`),
	kw(0.85, `\bcharge\b`),
	kw(0.70, `\btake payment\b`),
}

func paymentsModule() *Module {
	return &Module{
		Name:      "payments",
		Detect:    paymentsDetect,
		Extract:   paymentsExtract,
		BuildFlow: paymentsBuildFlow,
	}
}

func paymentsDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	if in, ok := matchIntent("payments", "refund", text, paymentsRefundPatterns); ok {
		out = append(out, in)
	}
	if in, ok := matchIntent("payments", "capture", text, paymentsCapturePatterns); ok {
		out = append(out, in)
	}
	return out
}

func paymentsExtract(intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	res := types.NewExtractionResult()

	if client := findClient(text, snap); client != nil {
		res.Entities["client_id"] = client.ID
		res.Entities["client_name"] = client.Name
	} else {
		res.AddMissing("client")
	}

	if amount, ok := findAmount(text); ok {
		res.Entities["amount"] = amount
	} else {
		res.AddMissing("amount")
	}
	return res
}

func paymentsBuildFlow(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	if !extraction.Complete() {
		return askSteps(extraction)
	}

	name := extraction.Entities["client_name"]
	amount := extraction.Entities["amount"]
	args := map[string]any{
		"client_id": extraction.Entities["client_id"],
		"amount":    amount,
	}

	switch intent.Name {
	case "refund":
		// Money out the door is irreversible: always compile a Confirm.
		return []types.FlowStep{
			types.Confirm(fmt.Sprintf("Refund $%.2f to %v?", amount, name)),
			types.ToolCall("payments.refund", args),
			types.Respond(fmt.Sprintf("Refunded $%.2f to %v.", amount, name)),
		}
	case "capture":
		return []types.FlowStep{
			types.Confirm(fmt.Sprintf("Charge %v $%.2f?", name, amount)),
			types.ToolCall("payments.capture", args),
			types.Respond(fmt.Sprintf("Charged %v $%.2f.", name, amount)),
		}
	}
	return []types.FlowStep{types.Respond(fmt.Sprintf("Unknown payments operation %q.", intent.Name))}
}
