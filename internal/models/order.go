package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is one product on an open table order. UnitPrice is captured
// when the line is created and never re-priced.
type OrderLine struct {
	ID          string          `json:"id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableOrder is the open, unsettled order of a table.
type TableOrder struct {
	ID          string      `json:"id"`
	TableNumber int         `json:"table_number"`
	Lines       []OrderLine `json:"lines"`
	OpenedAt    time.Time   `json:"opened_at"`
}

// NormalizeQuantity rounds q to hundredths and rejects non-positive results.
func NormalizeQuantity(q decimal.Decimal) (decimal.Decimal, error) {
	q = q.Round(2)
	if !q.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidQuantity, q)
	}
	return q, nil
}

// AddLine merges quantity into the line with the same product name, or
// appends a new line with id newID() created at now. It returns the
// resulting line.
func (o *TableOrder) AddLine(newID func() string, now time.Time, productName string, unitPrice, quantity decimal.Decimal) (OrderLine, error) {
	qty, err := NormalizeQuantity(quantity)
	if err != nil {
		return OrderLine{}, err
	}
	if unitPrice.IsNegative() {
		return OrderLine{}, ErrInvalidPrice
	}

	for i, line := range o.Lines {
		if line.ProductName != productName {
			continue
		}
		line.Quantity = line.Quantity.Add(qty).Round(2)
		line.LineTotal = Round2(line.UnitPrice.Mul(line.Quantity))
		o.Lines[i] = line
		return line, nil
	}

	line := OrderLine{
		ID:          newID(),
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    qty,
		LineTotal:   Round2(unitPrice.Mul(qty)),
		CreatedAt:   now,
	}
	o.Lines = append(o.Lines, line)
	return line, nil
}

// RemoveLine drops the line with the given id and reports whether it existed.
func (o *TableOrder) RemoveLine(lineID string) bool {
	for i, line := range o.Lines {
		if line.ID == lineID {
			o.Lines = append(o.Lines[:i:i], o.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Total is the rounded sum of line totals.
func (o TableOrder) Total() decimal.Decimal {
	return sumLines(o.Lines)
}

func (o TableOrder) Clone() TableOrder {
	o.Lines = cloneLines(o.Lines)
	return o
}

func sumLines(lines []OrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return Round2(sum)
}

func cloneLines(lines []OrderLine) []OrderLine {
	if lines == nil {
		return nil
	}
	return append([]OrderLine(nil), lines...)
}
