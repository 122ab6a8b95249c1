package models

// Product is a purchasable item priced into a quote.
type Product struct {
	// Name is the display name, always capitalized.
	Name string `json:"name"`

	// ENumber is the identifying number (digits only, not globally unique).
	ENumber string `json:"eNumber"`

	// PurchasePrice is what the item costs us, per unit.
	PurchasePrice float64 `json:"purchasePrice"`

	// Markup is a percentage added on top of the purchase price.
	Markup float64 `json:"markup"`

	// VAT is a percentage applied after markup.
	VAT float64 `json:"vat"`

	// Quantity is the number of units, at least 1.
	Quantity int `json:"quantity"`

	// TotalPrice is the derived unit total. It is never edited directly;
	// call Recompute after changing any other price field.
	TotalPrice float64 `json:"totalPrice"`
}

// UnitTotalPrice computes purchase × (1 + markup/100) × (1 + vat/100).
func UnitTotalPrice(purchase, markup, vat float64) float64 {
	return purchase * (1 + markup/100) * (1 + vat/100)
}

// UnitTotal returns the unit total derived from the current price fields.
func (p Product) UnitTotal() float64 {
	return UnitTotalPrice(p.PurchasePrice, p.Markup, p.VAT)
}

// Units returns Quantity, treating anything below 1 as 1.
func (p Product) Units() int {
	if p.Quantity < 1 {
		return 1
	}
	return p.Quantity
}

// Recompute refreshes TotalPrice and clamps Quantity.
func (p *Product) Recompute() {
	p.Quantity = p.Units()
	p.TotalPrice = p.UnitTotal()
}

// Validate checks a product built outside ProductInput.Normalize: the name
// is required and no amount may be negative.
func (p Product) Validate() error {
	if _, err := RequireText("name", p.Name); err != nil {
		return err
	}
	for _, a := range []struct {
		field string
		v     float64
	}{
		{"purchasePrice", p.PurchasePrice},
		{"markup", p.Markup},
		{"vat", p.VAT},
		{"quantity", float64(p.Quantity)},
	} {
		if err := RequireNonNegative(a.field, a.v); err != nil {
			return err
		}
	}
	return nil
}

// ProductInput is raw form input for a product, as typed by the user.
type ProductInput struct {
	Name          string
	ENumber       string
	PurchasePrice string
	Markup        string
	VAT           string
	Quantity      string
}

// Normalize validates the input and produces a Product.
// Name and ENumber are required; numeric fields keep digits only.
func (in ProductInput) Normalize() (Product, error) {
	name, err := RequireText("name", in.Name)
	if err != nil {
		return Product{}, err
	}
	enumber := DigitsOnly(in.ENumber)
	if enumber == "" {
		return Product{}, NewValidationError("eNumber", "required")
	}

	p := Product{
		Name:          CapitalizeFirst(name),
		ENumber:       enumber,
		PurchasePrice: ParseAmount(in.PurchasePrice),
		Markup:        ParseAmount(in.Markup),
		VAT:           ParseAmount(in.VAT),
		Quantity:      ParseQuantity(in.Quantity),
	}
	p.Recompute()
	return p, nil
}
