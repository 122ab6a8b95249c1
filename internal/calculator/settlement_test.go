package calculator

import (
	"math"
	"testing"

	"github.com/mmynk/workaholic/internal/models"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestProductAggregates(t *testing.T) {
	tests := []struct {
		name         string
		products     []models.Product
		wantPurchase float64
		wantTotal    float64
		wantProfit   float64
	}{
		{
			name: "empty list",
		},
		{
			name:         "markup and vat",
			products:     []models.Product{{PurchasePrice: 100, Markup: 25, VAT: 25, Quantity: 2}},
			wantPurchase: 200,
			wantTotal:    312.5,
			wantProfit:   112.5,
		},
		{
			name: "several products",
			products: []models.Product{
				{PurchasePrice: 100, Markup: 25, VAT: 25, Quantity: 2},
				{PurchasePrice: 10, Quantity: 3},
			},
			wantPurchase: 230,
			wantTotal:    342.5,
			wantProfit:   112.5,
		},
		{
			name:         "zero quantity counts as one",
			products:     []models.Product{{PurchasePrice: 40, Markup: 50}},
			wantPurchase: 40,
			wantTotal:    60,
			wantProfit:   20,
		},
		{
			name:         "stale stored total is ignored",
			products:     []models.Product{{PurchasePrice: 100, Quantity: 1, TotalPrice: 9999}},
			wantPurchase: 100,
			wantTotal:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SumPurchase(tt.products); !approx(got, tt.wantPurchase) {
				t.Errorf("SumPurchase = %v, want %v", got, tt.wantPurchase)
			}
			if got := SumTotal(tt.products); !approx(got, tt.wantTotal) {
				t.Errorf("SumTotal = %v, want %v", got, tt.wantTotal)
			}
			if got := ProductProfit(tt.products); !approx(got, tt.wantProfit) {
				t.Errorf("ProductProfit = %v, want %v", got, tt.wantProfit)
			}
		})
	}
}

func TestSumTotalNeverBelowPurchase(t *testing.T) {
	products := []models.Product{
		{PurchasePrice: 12, Markup: 0, VAT: 0, Quantity: 1},
		{PurchasePrice: 7, Markup: 3, VAT: 0, Quantity: 4},
		{PurchasePrice: 0.5, Markup: 0, VAT: 25, Quantity: 9},
	}
	for i := range products {
		if SumTotal(products[:i+1]) < SumPurchase(products[:i+1]) {
			t.Errorf("SumTotal < SumPurchase for %d products", i+1)
		}
	}
}

func TestCostAggregates(t *testing.T) {
	entries := []models.CostEntry{
		{Hours: 8, HourlyRate: 500, TravelCost: 750},
		{Hours: 2.5, HourlyRate: 400, TravelCost: 0},
	}

	if got := SumHours(entries); !approx(got, 10.5) {
		t.Errorf("SumHours = %v, want 10.5", got)
	}
	if got := SumTravel(entries); !approx(got, 750) {
		t.Errorf("SumTravel = %v, want 750", got)
	}
	if got := SumLabor(entries); !approx(got, 5000) {
		t.Errorf("SumLabor = %v, want 5000", got)
	}
	if got := LaborCost(entries); !approx(got, 5750) {
		t.Errorf("LaborCost = %v, want 5750", got)
	}
	if got := LaborCost(nil); got != 0 {
		t.Errorf("LaborCost(nil) = %v, want 0", got)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name        string
		products    []models.Product
		entries     []models.CostEntry
		wantCost    float64
		wantProfit  float64
		wantOutcome Outcome
	}{
		{
			name:        "empty group",
			wantOutcome: OutcomeProfit,
		},
		{
			name:        "products and labor",
			products:    []models.Product{{PurchasePrice: 100, Markup: 25, VAT: 25, Quantity: 2}},
			entries:     []models.CostEntry{{Hours: 8, HourlyRate: 500, TravelCost: 750}},
			wantCost:    5062.5,
			wantProfit:  4862.5,
			wantOutcome: OutcomeProfit,
		},
		{
			name:        "labor only",
			entries:     []models.CostEntry{{Hours: 1, HourlyRate: 300}},
			wantCost:    300,
			wantProfit:  300,
			wantOutcome: OutcomeProfit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(tt.products, tt.entries)
			if !approx(s.TotalCost, tt.wantCost) {
				t.Errorf("TotalCost = %v, want %v", s.TotalCost, tt.wantCost)
			}
			if !approx(s.TotalProfit, tt.wantProfit) {
				t.Errorf("TotalProfit = %v, want %v", s.TotalProfit, tt.wantProfit)
			}
			if s.Outcome() != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v", s.Outcome(), tt.wantOutcome)
			}
			if !approx(s.TotalCost, s.MaterialSum+s.LaborCost) {
				t.Errorf("TotalCost %v != MaterialSum %v + LaborCost %v", s.TotalCost, s.MaterialSum, s.LaborCost)
			}
		})
	}
}

func TestSettlementOutcomeLoss(t *testing.T) {
	s := Settlement{TotalProfit: -0.01}
	if s.Outcome() != OutcomeLoss {
		t.Errorf("Outcome = %v, want loss", s.Outcome())
	}
	if OutcomeLoss.String() != "loss" || OutcomeProfit.String() != "profit" {
		t.Error("unexpected Outcome strings")
	}
}

func TestSettleGroup_LegacyTransactionsMatchLegacySums(t *testing.T) {
	fields := map[string]any{
		"ownerUid": "u1",
		"transactions": []any{
			map[string]any{"description": "a", "amount": 200.0, "carCost": 50.0, "quantity": 3.0},
			map[string]any{"description": "b", "amount": 99.5, "carCost": 0.0, "quantity": 2.0},
		},
	}
	g, err := models.GroupFromFields("legacy", fields)
	if err != nil {
		t.Fatalf("GroupFromFields failed: %v", err)
	}

	s := SettleGroup(g)
	// Legacy: Σ amount×qty = 600 + 199, Σ carCost×qty = 150.
	if !approx(s.Labor, 799) {
		t.Errorf("Labor = %v, want 799", s.Labor)
	}
	if !approx(s.Travel, 150) {
		t.Errorf("Travel = %v, want 150", s.Travel)
	}
	if !approx(s.TotalCost, 949) {
		t.Errorf("TotalCost = %v, want 949", s.TotalCost)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{312.5, "312.5"},
		{4750, "4750"},
		{5062.50, "5062.5"},
		{156.255, "156.26"},
		{0.1 + 0.2, "0.3"},
		{-12.345, "-12.35"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatAmount(tt.in); got != tt.want {
				t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := FormatKronor(112.5); got != "112.5 kr" {
		t.Errorf("FormatKronor = %q", got)
	}
}
