package calculator

import "github.com/mmynk/workaholic/internal/models"

// SumPurchase returns Σ purchasePrice × quantity.
func SumPurchase(products []models.Product) float64 {
	var sum float64
	for _, p := range products {
		sum += p.PurchasePrice * float64(p.Units())
	}
	return sum
}

// SumTotal returns Σ unitTotal × quantity. The unit total is derived from the
// price fields, never read from the stored TotalPrice.
func SumTotal(products []models.Product) float64 {
	var sum float64
	for _, p := range products {
		sum += p.UnitTotal() * float64(p.Units())
	}
	return sum
}

// ProductProfit returns SumTotal - SumPurchase.
func ProductProfit(products []models.Product) float64 {
	return SumTotal(products) - SumPurchase(products)
}

// SumHours returns the total hours worked.
func SumHours(entries []models.CostEntry) float64 {
	var sum float64
	for _, c := range entries {
		sum += c.Hours
	}
	return sum
}

// SumTravel returns the total travel cost.
func SumTravel(entries []models.CostEntry) float64 {
	var sum float64
	for _, c := range entries {
		sum += c.TravelCost
	}
	return sum
}

// SumLabor returns Σ hours × hourlyRate.
func SumLabor(entries []models.CostEntry) float64 {
	var sum float64
	for _, c := range entries {
		sum += c.Labor()
	}
	return sum
}

// LaborCost is labor plus travel.
func LaborCost(entries []models.CostEntry) float64 {
	return SumLabor(entries) + SumTravel(entries)
}
