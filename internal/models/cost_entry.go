package models

import (
	"strings"
	"time"
)

// DateLayout is the ISO date format used for cost entry dates.
const DateLayout = "2006-01-02"

// CostEntry ("kostnad") is labor and travel billed against a group.
type CostEntry struct {
	// Description says what the work was, always capitalized.
	Description string `json:"info"`

	// Hours worked.
	Hours float64 `json:"timmar"`

	// HourlyRate charged per hour.
	HourlyRate float64 `json:"timpris"`

	// TravelCost is the car/travel cost for the entry.
	TravelCost float64 `json:"bilkostnad"`

	// Date in YYYY-MM-DD form.
	Date string `json:"datum"`
}

// Labor returns Hours × HourlyRate.
func (c CostEntry) Labor() float64 {
	return c.Hours * c.HourlyRate
}

// Validate checks an entry built outside CostEntryInput.Normalize.
func (c CostEntry) Validate() error {
	if _, err := RequireText("info", c.Description); err != nil {
		return err
	}
	if c.Date != "" {
		if _, err := time.Parse(DateLayout, c.Date); err != nil {
			return NewValidationError("datum", "must be YYYY-MM-DD")
		}
	}
	if err := RequireNonNegative("timmar", c.Hours); err != nil {
		return err
	}
	if err := RequireNonNegative("timpris", c.HourlyRate); err != nil {
		return err
	}
	return RequireNonNegative("bilkostnad", c.TravelCost)
}

// CostEntryInput is raw form input for a cost entry.
type CostEntryInput struct {
	Description string
	Hours       string
	HourlyRate  string
	TravelCost  string
	Date        string
}

// Normalize validates the input and produces a CostEntry. An empty date
// becomes the date of now.
func (in CostEntryInput) Normalize(now time.Time) (CostEntry, error) {
	desc, err := RequireText("info", in.Description)
	if err != nil {
		return CostEntry{}, err
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = now.Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		return CostEntry{}, NewValidationError("datum", "must be YYYY-MM-DD")
	}

	return CostEntry{
		Description: CapitalizeFirst(desc),
		Hours:       ParseAmount(in.Hours),
		HourlyRate:  ParseAmount(in.HourlyRate),
		TravelCost:  ParseAmount(in.TravelCost),
		Date:        date,
	}, nil
}

// Transaction is the legacy line item some older groups still carry.
// It is read but never written.
type Transaction struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	CarCost     float64 `json:"carCost"`
	Quantity    int     `json:"quantity"`
}

// AsCostEntry folds a legacy transaction into a cost entry whose labor and
// travel sums equal the legacy amount×quantity and carCost×quantity sums.
func (t Transaction) AsCostEntry() CostEntry {
	qty := t.Quantity
	if qty < 1 {
		qty = 1
	}
	return CostEntry{
		Description: t.Description,
		Hours:       float64(qty),
		HourlyRate:  t.Amount,
		TravelCost:  t.CarCost * float64(qty),
	}
}
