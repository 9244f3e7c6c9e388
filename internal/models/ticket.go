package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ticket is the immutable record of a settled table order.
type Ticket struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	TableNumber    int             `json:"table_number"`
	Lines          []OrderLine     `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRateApplied decimal.Decimal `json:"tax_rate_applied"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	SettledAt      time.Time       `json:"settled_at"`
}

// NewTicket derives a ticket from an order. Lines are copied so later
// changes to the order do not reach the ticket.
func NewTicket(id string, order TableOrder, taxRate decimal.Decimal, settledAt time.Time) Ticket {
	subtotal := sumLines(order.Lines)
	tax := Round2(subtotal.Mul(taxRate))
	return Ticket{
		ID:             id,
		OrderID:        order.ID,
		TableNumber:    order.TableNumber,
		Lines:          cloneLines(order.Lines),
		Subtotal:       subtotal,
		TaxRateApplied: taxRate,
		TaxAmount:      tax,
		Total:          Round2(subtotal.Add(tax)),
		SettledAt:      settledAt,
	}
}

// Verify checks the derived amounts against the lines.
func (t Ticket) Verify() error {
	if subtotal := sumLines(t.Lines); !subtotal.Equal(t.Subtotal) {
		return fmt.Errorf("ticket %s: subtotal %s, lines sum to %s", t.ID, t.Subtotal, subtotal)
	}
	if tax := Round2(t.Subtotal.Mul(t.TaxRateApplied)); !tax.Equal(t.TaxAmount) {
		return fmt.Errorf("ticket %s: tax %s, expected %s", t.ID, t.TaxAmount, tax)
	}
	if total := Round2(t.Subtotal.Add(t.TaxAmount)); !total.Equal(t.Total) {
		return fmt.Errorf("ticket %s: total %s, expected %s", t.ID, t.Total, total)
	}
	return nil
}

func (t Ticket) Clone() Ticket {
	t.Lines = cloneLines(t.Lines)
	return t
}

// ShortID is the trailing six characters of the id, used on printed receipts.
func (t Ticket) ShortID() string {
	if len(t.ID) <= 6 {
		return t.ID
	}
	return t.ID[len(t.ID)-6:]
}
