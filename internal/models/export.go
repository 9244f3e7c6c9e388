package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Row kinds produced by FlattenTicket.
const (
	RowLine     = "line"
	RowSubtotal = "subtotal"
	RowTax      = "tax"
	RowTotal    = "total"
)

// ExportHeader labels the columns of ExportRow.Record.
var ExportHeader = []string{"Table", "Date", "Product", "Quantity", "Unit Price", "Total"}

// ExportRow is one tabular row of an exported ticket.
type ExportRow struct {
	Kind        string           `json:"kind"`
	TableNumber int              `json:"table_number"`
	SettledAt   time.Time        `json:"settled_at"`
	Product     string           `json:"product"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Total       decimal.Decimal  `json:"total"`
}

// FlattenTicket turns a ticket into one row per line followed by the
// subtotal, tax and total rows.
func FlattenTicket(t Ticket) []ExportRow {
	rows := make([]ExportRow, 0, len(t.Lines)+3)
	for _, l := range t.Lines {
		qty, price := l.Quantity, l.UnitPrice
		rows = append(rows, ExportRow{
			Kind:        RowLine,
			TableNumber: t.TableNumber,
			SettledAt:   t.SettledAt,
			Product:     l.ProductName,
			Quantity:    &qty,
			UnitPrice:   &price,
			Total:       l.LineTotal,
		})
	}
	summary := []struct {
		kind, label string
		amount      decimal.Decimal
	}{
		{RowSubtotal, "Subtotal", t.Subtotal},
		{RowTax, "Tax", t.TaxAmount},
		{RowTotal, "Total", t.Total},
	}
	for _, s := range summary {
		rows = append(rows, ExportRow{
			Kind:        s.kind,
			TableNumber: t.TableNumber,
			SettledAt:   t.SettledAt,
			Product:     s.label,
			Total:       s.amount,
		})
	}
	return rows
}

// FlattenTickets concatenates FlattenTicket over tickets in order.
func FlattenTickets(tickets []Ticket) []ExportRow {
	var rows []ExportRow
	for _, t := range tickets {
		rows = append(rows, FlattenTicket(t)...)
	}
	return rows
}

// Record renders the row as strings matching ExportHeader. Summary rows
// leave table, date, quantity and unit price blank.
func (r ExportRow) Record() []string {
	if r.Kind != RowLine {
		return []string{"", "", r.Product, "", "", r.Total.StringFixed(2)}
	}
	rec := []string{
		strconv.Itoa(r.TableNumber),
		r.SettledAt.Format(time.RFC3339),
		r.Product,
		"",
		"",
		r.Total.StringFixed(2),
	}
	if r.Quantity != nil {
		rec[3] = r.Quantity.String()
	}
	if r.UnitPrice != nil {
		rec[4] = r.UnitPrice.StringFixed(2)
	}
	return rec
}
