package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/services/order/internal/domain"
)

var (
	maxQuantity  = decimal.NewFromInt(100)
	maxOpenPrice = decimal.RequireFromString("999.99")
)

const maxNameLength = 50

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateLineRequest checks the shape of a line request. Non-positive
// quantities and unknown products are left to the order book.
func ValidateLineRequest(req *domain.LineRequest) error {
	if req.IsMenuProduct() {
		if err := validateMenuProduct(req); err != nil {
			return err
		}
	} else if err := validateOpenItem(req); err != nil {
		return err
	}

	if req.Quantity.GreaterThan(maxQuantity) {
		return ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("quantity must be less than or equal to %s", maxQuantity),
		}
	}
	return nil
}

func validateMenuProduct(req *domain.LineRequest) error {
	if req.ProductName != "" || req.UnitPrice != nil {
		return ValidationError{
			Field:   "product_name",
			Message: "a menu product cannot also carry a name or unit price",
		}
	}
	fields := []struct{ name, value string }{
		{"section", req.Section},
		{"category", req.Category},
		{"variant", req.Variant},
	}
	for _, f := range fields {
		if f.value == "" {
			return ValidationError{
				Field:   f.name,
				Message: fmt.Sprintf("%s is required for a menu product", f.name),
			}
		}
	}
	return nil
}

func validateOpenItem(req *domain.LineRequest) error {
	if req.ProductName == "" {
		return ValidationError{
			Field:   "product_name",
			Message: "either section/category/variant or product_name is required",
		}
	}

	if len(req.ProductName) > maxNameLength {
		return ValidationError{
			Field:   "product_name",
			Message: fmt.Sprintf("product name must be at most %d characters", maxNameLength),
		}
	}

	if req.UnitPrice == nil {
		return ValidationError{
			Field:   "unit_price",
			Message: "unit price is required for an open item",
		}
	}

	if req.UnitPrice.IsNegative() {
		return ValidationError{
			Field:   "unit_price",
			Message: "unit price cannot be negative",
		}
	}

	if req.UnitPrice.GreaterThan(maxOpenPrice) {
		return ValidationError{
			Field:   "unit_price",
			Message: fmt.Sprintf("unit price must be less than or equal to %s", maxOpenPrice),
		}
	}
	return nil
}
