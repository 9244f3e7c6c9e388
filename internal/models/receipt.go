package models

import (
	"fmt"
	"strings"
	"time"
)

// ReceiptText renders a ticket as plain text for sharing or printing.
func ReceiptText(t Ticket, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%s\n", t.ShortID())
	fmt.Fprintf(&b, "Date: %s\n", t.SettledAt.In(loc).Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Table: %d\n\n", t.TableNumber)
	for _, l := range t.Lines {
		fmt.Fprintf(&b, "%s x %s  %s\n", l.Quantity, l.ProductName, FormatCurrency(l.LineTotal))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", FormatCurrency(t.Subtotal))
	fmt.Fprintf(&b, "Tax (%s%%): %s\n", t.TaxRateApplied.Shift(2).String(), FormatCurrency(t.TaxAmount))
	fmt.Fprintf(&b, "Total: %s\n", FormatCurrency(t.Total))
	return b.String()
}
