package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/services/order/internal/domain"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidateLineRequest(t *testing.T) {
	one := decimal.NewFromInt(1)

	tests := []struct {
		name      string
		req       *domain.LineRequest
		wantField string
	}{
		{
			name: "menu product",
			req:  &domain.LineRequest{Section: "tacos", Category: "asada", Variant: "bistec", Quantity: one},
		},
		{
			name: "open item",
			req:  &domain.LineRequest{ProductName: "Salsa extra", UnitPrice: price("2.50"), Quantity: one},
		},
		{
			name: "zero quantity is left to the order book",
			req:  &domain.LineRequest{Section: "tacos", Category: "asada", Variant: "bistec", Quantity: decimal.Zero},
		},
		{
			name:      "missing variant",
			req:       &domain.LineRequest{Section: "tacos", Category: "asada", Quantity: one},
			wantField: "variant",
		},
		{
			name:      "menu product with price",
			req:       &domain.LineRequest{Section: "tacos", Category: "asada", Variant: "bistec", UnitPrice: price("1"), Quantity: one},
			wantField: "product_name",
		},
		{
			name:      "nothing named",
			req:       &domain.LineRequest{Quantity: one},
			wantField: "product_name",
		},
		{
			name:      "open item without price",
			req:       &domain.LineRequest{ProductName: "Salsa extra", Quantity: one},
			wantField: "unit_price",
		},
		{
			name:      "negative price",
			req:       &domain.LineRequest{ProductName: "Salsa extra", UnitPrice: price("-1"), Quantity: one},
			wantField: "unit_price",
		},
		{
			name:      "long name",
			req:       &domain.LineRequest{ProductName: strings.Repeat("x", 51), UnitPrice: price("1"), Quantity: one},
			wantField: "product_name",
		},
		{
			name:      "too many",
			req:       &domain.LineRequest{Section: "bebidas", Category: "agua", Variant: "natural", Quantity: decimal.NewFromInt(101)},
			wantField: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLineRequest(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateLineRequest() unexpected error = %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateLineRequest() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("ValidateLineRequest() field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
