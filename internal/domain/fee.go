package domain

import (
	"math"
	"sort"
)

// OwnedItem is an item annotated with the contribution it arrived in.
type OwnedItem struct {
	Item
	OwnerID        string
	ContributionID string
}

// FeePlan is the outcome of splitting a round between the house fee and
// the winner's payout.
type FeePlan struct {
	Withheld []OwnedItem // kept as the fee, non-winner items only
	Payout   []OwnedItem // sent to the winner
	FeeTaken int64       // total value withheld, <= the budget
}

// FeeBudget is the value the house may withhold from a round.
func FeeBudget(bank int64, feePercent float64) int64 {
	if feePercent <= 0 || bank <= 0 {
		return 0
	}
	return int64(math.Floor(float64(bank) * feePercent))
}

// PlanFee splits the ledger's items into a withheld set and a payout set.
// Items are considered cheapest-first over a sorted copy (never the live
// ledger): a non-winner item is withheld while it still fits the remaining
// budget. The winner's own items are never withheld.
func PlanFee(ledger Ledger, winnerID string, budget int64) FeePlan {
	items := make([]OwnedItem, 0, ledger.ItemCount())
	for _, c := range ledger {
		for _, it := range c.Items {
			items = append(items, OwnedItem{Item: it, OwnerID: c.OwnerID, ContributionID: c.ID})
		}
	}
	// Stable keeps insertion order among equal values, so the plan is
	// deterministic across restarts.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Value < items[j].Value })

	plan := FeePlan{}
	remaining := budget
	for _, it := range items {
		if it.OwnerID != winnerID && it.Value <= remaining {
			plan.Withheld = append(plan.Withheld, it)
			plan.FeeTaken += it.Value
			remaining -= it.Value
			continue
		}
		plan.Payout = append(plan.Payout, it)
	}
	return plan
}
