package domain

import "github.com/shopspring/decimal"

// LineRequest is the body of POST /tables/{table}/lines. It names either a
// menu product (Section, Category, Variant) or an open item with its own
// name and unit price.
type LineRequest struct {
	Section     string           `json:"section,omitempty"`
	Category    string           `json:"category,omitempty"`
	Variant     string           `json:"variant,omitempty"`
	ProductName string           `json:"product_name,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
}

// IsMenuProduct reports whether the request resolves through the catalog.
func (r LineRequest) IsMenuProduct() bool {
	return r.Section != "" || r.Category != "" || r.Variant != ""
}
