package suggest

import (
	"fmt"

	"solari/internal/types"
)

// inventoryUrgentCoverDays marks how few days of stock cover escalate a
// low-stock notice to a warning.
const inventoryUrgentCoverDays = 7.0

// InventoryEngine flags products at or below their reorder point, scaled by
// how fast they are actually moving.
type InventoryEngine struct{}

func (e *InventoryEngine) Name() string { return "inventory_low_stock" }

func (e *InventoryEngine) Run(snap *types.Snapshot) []types.Suggestion {
	var out []types.Suggestion
	for _, item := range snap.Inventory {
		if item.OnHand > item.ReorderAt {
			continue
		}

		why := []string{
			fmt.Sprintf("%d on hand, reorder point is %d", item.OnHand, item.ReorderAt),
			fmt.Sprintf("%d units used in the last 30 days", item.Used30d),
		}

		severity := types.SeverityInfo
		switch {
		case item.OnHand == 0:
			severity = types.SeverityCritical
			why = append(why, "stock is exhausted")
		case item.Used30d > 0:
			cover := float64(item.OnHand) / (float64(item.Used30d) / 30.0)
			why = append(why, fmt.Sprintf("roughly %.0f days of cover at current usage", cover))
			if cover < inventoryUrgentCoverDays {
				severity = types.SeverityWarn
			}
		}

		out = append(out, newSuggestion(
			e.Name(),
			"Low stock: "+item.Name,
			fmt.Sprintf("%s is down to %d units (reorder at %d).", item.Name, item.OnHand, item.ReorderAt),
			severity,
			why,
		))
	}
	return out
}
