package history

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

// Totals is the aggregate of a ticket set.
type Totals struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TicketCount  int             `json:"ticket_count"`
	LineCount    int             `json:"line_count"`
}

func AggregateTotals(tickets []models.Ticket) Totals {
	totals := Totals{TotalRevenue: decimal.Zero}
	for _, t := range tickets {
		totals.TotalRevenue = totals.TotalRevenue.Add(t.Total)
		totals.TicketCount++
		totals.LineCount += len(t.Lines)
	}
	totals.TotalRevenue = models.Round2(totals.TotalRevenue)
	return totals
}

type ProductQuantity struct {
	ProductName   string          `json:"product_name"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// TopProducts sums quantity per product name and returns the largest
// first. Equal quantities keep the order in which products were first seen.
// A non-positive limit returns every product.
func TopProducts(tickets []models.Ticket, limit int) []ProductQuantity {
	var products []ProductQuantity
	index := make(map[string]int)

	for _, t := range tickets {
		for _, l := range t.Lines {
			i, ok := index[l.ProductName]
			if !ok {
				i = len(products)
				index[l.ProductName] = i
				products = append(products, ProductQuantity{ProductName: l.ProductName, TotalQuantity: decimal.Zero})
			}
			products[i].TotalQuantity = products[i].TotalQuantity.Add(l.Quantity)
		}
	}

	sort.SliceStable(products, func(a, b int) bool {
		return products[a].TotalQuantity.GreaterThan(products[b].TotalQuantity)
	})

	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products
}

type WeekdaySales struct {
	Weekday          time.Weekday    `json:"weekday"`
	Name             string          `json:"name"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TicketCount      int             `json:"ticket_count"`
	AveragePerTicket decimal.Decimal `json:"average_per_ticket"`
}

// SalesByWeekday buckets tickets by the weekday of settlement in loc,
// Sunday first.
func SalesByWeekday(tickets []models.Ticket, loc *time.Location) [7]WeekdaySales {
	var buckets [7]WeekdaySales
	for i := range buckets {
		buckets[i] = WeekdaySales{
			Weekday:          time.Weekday(i),
			Name:             time.Weekday(i).String(),
			TotalRevenue:     decimal.Zero,
			AveragePerTicket: decimal.Zero,
		}
	}

	for _, t := range tickets {
		b := &buckets[t.SettledAt.In(loc).Weekday()]
		b.TotalRevenue = b.TotalRevenue.Add(t.Total)
		b.TicketCount++
	}

	for i := range buckets {
		b := &buckets[i]
		b.TotalRevenue = models.Round2(b.TotalRevenue)
		if b.TicketCount > 0 {
			b.AveragePerTicket = models.Round2(b.TotalRevenue.Div(decimal.NewFromInt(int64(b.TicketCount))))
		}
	}
	return buckets
}

type DailySales struct {
	Date         string          `json:"date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TicketCount  int             `json:"ticket_count"`
}

// SalesByDay totals revenue per calendar day in loc, oldest day first.
func SalesByDay(tickets []models.Ticket, loc *time.Location) []DailySales {
	byDate := make(map[string]*DailySales)
	for _, t := range tickets {
		date := t.SettledAt.In(loc).Format("2006-01-02")
		d, ok := byDate[date]
		if !ok {
			d = &DailySales{Date: date, TotalRevenue: decimal.Zero}
			byDate[date] = d
		}
		d.TotalRevenue = d.TotalRevenue.Add(t.Total)
		d.TicketCount++
	}

	days := make([]DailySales, 0, len(byDate))
	for _, d := range byDate {
		d.TotalRevenue = models.Round2(d.TotalRevenue)
		days = append(days, *d)
	}
	sort.Slice(days, func(a, b int) bool { return days[a].Date < days[b].Date })
	return days
}
