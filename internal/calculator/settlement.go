package calculator

import "github.com/mmynk/workaholic/internal/models"

// Outcome classifies a settlement for display.
type Outcome int

const (
	// OutcomeProfit is a non-negative total profit.
	OutcomeProfit Outcome = iota
	// OutcomeLoss is a negative total profit.
	OutcomeLoss
)

func (o Outcome) String() string {
	if o == OutcomeLoss {
		return "loss"
	}
	return "profit"
}

// Settlement is the computed summary of one group.
type Settlement struct {
	// MaterialSum is SumTotal of the products.
	MaterialSum float64
	// PurchaseSum is SumPurchase of the products.
	PurchaseSum float64
	// ProductProfit is MaterialSum - PurchaseSum.
	ProductProfit float64

	Hours     float64
	Labor     float64
	Travel    float64
	LaborCost float64

	// TotalCost is what the customer is billed: materials plus labor cost.
	TotalCost float64
	// TotalProfit counts labor cost in full; labor has no purchase price.
	TotalProfit float64
}

// Settle computes the settlement for a set of products and cost entries.
// Sums are kept at full precision; round only when formatting.
func Settle(products []models.Product, entries []models.CostEntry) Settlement {
	s := Settlement{
		MaterialSum: SumTotal(products),
		PurchaseSum: SumPurchase(products),
		Hours:       SumHours(entries),
		Labor:       SumLabor(entries),
		Travel:      SumTravel(entries),
	}
	s.ProductProfit = s.MaterialSum - s.PurchaseSum
	s.LaborCost = s.Labor + s.Travel
	s.TotalCost = s.MaterialSum + s.LaborCost
	s.TotalProfit = s.ProductProfit + s.LaborCost
	return s
}

// SettleGroup is Settle over a group's lists.
func SettleGroup(g models.Group) Settlement {
	return Settle(g.Products, g.CostEntries)
}

// Outcome reports whether the settlement is a profit or a loss.
func (s Settlement) Outcome() Outcome {
	if s.TotalProfit < 0 {
		return OutcomeLoss
	}
	return OutcomeProfit
}
