package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/catalog"
	"restaurant-pos/internal/services/history"
	"restaurant-pos/internal/storage"
)

type settleTestContext struct {
	store   *switchStore
	syncer  *storage.Syncer
	history *history.History
	book    *Book

	taxRate     decimal.Decimal
	ticket      models.Ticket
	err         error
	removedLine string
	removedFrom int
}

func (c *settleTestContext) reset() error {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	c.store = &switchStore{MemoryStore: storage.NewMemoryStore()}
	c.syncer = storage.NewSyncer(c.store, logger.NewNop())
	c.history = history.New(c.syncer, logger.NewNop(), history.WithLocation(time.UTC))
	c.book = NewBook(c.syncer, c.history, catalog.NewService(c.syncer, logger.NewNop()), node, logger.NewNop())
	c.taxRate = decimal.Zero
	c.ticket = models.Ticket{}
	c.err = nil
	c.removedLine = ""
	return nil
}

// Given steps

func (c *settleTestContext) theTaxRateIs(rate string) error {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return err
	}
	c.taxRate = r
	return nil
}

func (c *settleTestContext) tableOrders(table int, qty int, name string, price string) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	_, err = c.book.AddLine(table, name, p, decimal.NewFromInt(int64(qty)))
	return err
}

func (c *settleTestContext) theStoreIsFailing() error {
	if err := c.syncer.Flush(context.Background()); err != nil {
		return err
	}
	c.store.setBroken(true)
	return nil
}

// When steps

func (c *settleTestContext) tableIsSettled(table int) error {
	c.ticket, c.err = c.book.Settle(context.Background(), table, c.taxRate)
	return nil
}

func (c *settleTestContext) theLastLineOfTableIsRemoved(table int) error {
	order, ok := c.book.Order(table)
	if !ok || len(order.Lines) == 0 {
		return fmt.Errorf("table %d has no lines", table)
	}
	c.removedLine = order.Lines[len(order.Lines)-1].ID
	c.removedFrom = table
	if !c.book.RemoveLine(table, c.removedLine) {
		return fmt.Errorf("line %s was not removed", c.removedLine)
	}
	return nil
}

// Then steps

func (c *settleTestContext) tableHasLines(table, n int) error {
	order, _ := c.book.Order(table)
	if len(order.Lines) != n {
		return fmt.Errorf("expected %d lines on table %d, got %d", n, table, len(order.Lines))
	}
	return nil
}

func (c *settleTestContext) tableTotals(table int, want string) error {
	if got := c.book.TableTotal(table).StringFixed(2); got != want {
		return fmt.Errorf("expected table %d total %s, got %s", table, want, got)
	}
	return nil
}

func (c *settleTestContext) tableIsEmpty(table int) error {
	if _, open := c.book.Order(table); open {
		return fmt.Errorf("table %d still has an open order", table)
	}
	return nil
}

func (c *settleTestContext) ticketAmount(field string) func(string) error {
	return func(want string) error {
		if c.err != nil {
			return fmt.Errorf("settlement failed: %w", c.err)
		}
		var got decimal.Decimal
		switch field {
		case "subtotal":
			got = c.ticket.Subtotal
		case "tax":
			got = c.ticket.TaxAmount
		default:
			got = c.ticket.Total
		}
		if got.StringFixed(2) != want {
			return fmt.Errorf("expected ticket %s %s, got %s", field, want, got.StringFixed(2))
		}
		return nil
	}
}

func (c *settleTestContext) historyHolds(n int) error {
	if got := len(c.history.All()); got != n {
		return fmt.Errorf("expected %d tickets in history, got %d", n, got)
	}
	return nil
}

func (c *settleTestContext) refusedBecause(reason string) error {
	want := models.ErrEmptyTable
	if reason == "the store failed" {
		want = models.ErrPersistenceFailure
	}
	if !errors.Is(c.err, want) {
		return fmt.Errorf("expected %v, got %v", want, c.err)
	}
	return nil
}

func (c *settleTestContext) removingItAgainChangesNothing() error {
	if c.book.RemoveLine(c.removedFrom, c.removedLine) {
		return errors.New("second removal reported a change")
	}
	return nil
}

func InitializeSettleScenario(ctx *godog.ScenarioContext) {
	tc := &settleTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		return ctx, tc.syncer.Close()
	})

	// Given steps
	ctx.Step(`^the tax rate is ([\d.]+)$`, tc.theTaxRateIs)
	ctx.Step(`^table (\d+) orders (\d+) of "([^"]*)" at ([\d.]+)$`, tc.tableOrders)
	ctx.Step(`^the store is failing$`, tc.theStoreIsFailing)

	// When steps
	ctx.Step(`^table (\d+) is settled$`, tc.tableIsSettled)
	ctx.Step(`^the last line of table (\d+) is removed$`, tc.theLastLineOfTableIsRemoved)

	// Then steps
	ctx.Step(`^table (\d+) has (\d+) lines?$`, tc.tableHasLines)
	ctx.Step(`^table (\d+) totals ([\d.]+)$`, tc.tableTotals)
	ctx.Step(`^table (\d+) is empty$`, tc.tableIsEmpty)
	ctx.Step(`^the ticket subtotal is ([\d.]+)$`, tc.ticketAmount("subtotal"))
	ctx.Step(`^the ticket tax is ([\d.]+)$`, tc.ticketAmount("tax"))
	ctx.Step(`^the ticket total is ([\d.]+)$`, tc.ticketAmount("total"))
	ctx.Step(`^the history holds (\d+) tickets?$`, tc.historyHolds)
	ctx.Step(`^settlement is refused because (the table is empty|the store failed)$`, tc.refusedBecause)
	ctx.Step(`^removing it again changes nothing$`, tc.removingItAgainChangesNothing)
}

func TestSettleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeSettleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/settle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
