package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// FormatAmount renders n rounded to two decimals with trailing zeros dropped,
// e.g. 312.5 → "312.5", 4750 → "4750". NaN and infinities render as "0".
func FormatAmount(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "0"
	}
	return decimal.NewFromFloat(n).Round(2).String()
}

// FormatKronor is FormatAmount with the currency suffix used in summaries.
func FormatKronor(n float64) string {
	return FormatAmount(n) + " kr"
}
