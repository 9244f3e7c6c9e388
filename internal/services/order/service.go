package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/history"
	"restaurant-pos/internal/storage"
)

// Persister is the part of storage.Syncer the order book needs.
type Persister interface {
	Get(ctx context.Context, key string) (string, error)
	Save(key, value string)
	SaveNow(ctx context.Context, entries map[string]string) error
}

// Pricer resolves a menu product to its display name and unit price.
type Pricer interface {
	Product(section, category, variant string) (string, decimal.Decimal, error)
}

// TicketPublisher announces settled tickets.
type TicketPublisher interface {
	PublishTicketSettled(ctx context.Context, msg *models.TicketSettledMessage) error
}

// Book owns every open table order. Tables without an open order are
// absent from the map.
type Book struct {
	mu     sync.Mutex
	tables map[int]*models.TableOrder

	store     Persister
	history   *history.History
	pricer    Pricer
	tickets   *snowflake.Node
	publisher TicketPublisher
	logger    *logger.Logger

	now    func() time.Time
	lineID func() string
}

type Option func(*Book)

// WithPublisher enables settled-ticket notifications.
func WithPublisher(p TicketPublisher) Option {
	return func(b *Book) { b.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithLineIDs replaces the uuid line id generator.
func WithLineIDs(next func() string) Option {
	return func(b *Book) { b.lineID = next }
}

func NewBook(store Persister, hist *history.History, pricer Pricer, tickets *snowflake.Node, log *logger.Logger, opts ...Option) *Book {
	b := &Book{
		tables:  make(map[int]*models.TableOrder),
		store:   store,
		history: hist,
		pricer:  pricer,
		tickets: tickets,
		logger:  log,
		now:     time.Now,
		lineID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load replaces the open orders with the stored snapshot. An unreadable
// snapshot is treated as no open orders.
func (b *Book) Load(ctx context.Context) error {
	raw, err := b.store.Get(ctx, storage.KeyOrders)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load orders: %v", models.ErrPersistenceFailure, err)
	}

	var stored map[int]*models.TableOrder
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		b.logger.Warn("orders_corrupt", "Stored orders are unreadable, starting empty", "", map[string]interface{}{
			"reason": err.Error(),
		})
		return nil
	}

	tables := make(map[int]*models.TableOrder, len(stored))
	for n, o := range stored {
		if o == nil || len(o.Lines) == 0 {
			continue
		}
		o.TableNumber = n
		tables[n] = o
	}

	b.mu.Lock()
	b.tables = tables
	b.mu.Unlock()

	b.logger.Info("orders_loaded", "Open orders loaded", "", map[string]interface{}{"tables": len(tables)})
	return nil
}

// AddLine adds quantity of productName at unitPrice to the table, merging
// into an existing line of the same name. The table's order is opened on
// the first line.
func (b *Book) AddLine(table int, productName string, unitPrice, quantity decimal.Decimal) (models.OrderLine, error) {
	if table <= 0 {
		return models.OrderLine{}, fmt.Errorf("%w: %d", models.ErrTableNotFound, table)
	}

	b.mu.Lock()
	order, open := b.tables[table]
	if !open {
		order = &models.TableOrder{ID: uuid.NewString(), TableNumber: table, OpenedAt: b.now()}
	}
	line, err := order.AddLine(b.lineID, b.now(), productName, unitPrice, quantity)
	if err != nil {
		b.mu.Unlock()
		return models.OrderLine{}, err
	}
	b.tables[table] = order
	b.persistLocked()
	b.mu.Unlock()

	b.logger.Debug("line_added", "Order line added", "", map[string]interface{}{
		"table":    table,
		"line_id":  line.ID,
		"product":  productName,
		"quantity": line.Quantity.String(),
	})
	return line, nil
}

// AddProduct resolves the product through the catalog and adds it.
func (b *Book) AddProduct(table int, section, category, variant string, quantity decimal.Decimal) (models.OrderLine, error) {
	name, price, err := b.pricer.Product(section, category, variant)
	if err != nil {
		return models.OrderLine{}, err
	}
	return b.AddLine(table, name, price, quantity)
}

// RemoveLine removes one line and reports whether anything changed. The
// table's order closes when its last line goes.
func (b *Book) RemoveLine(table int, lineID string) bool {
	b.mu.Lock()
	order, ok := b.tables[table]
	if !ok || !order.RemoveLine(lineID) {
		b.mu.Unlock()
		return false
	}
	if len(order.Lines) == 0 {
		delete(b.tables, table)
	}
	b.persistLocked()
	b.mu.Unlock()

	b.logger.Debug("line_removed", "Order line removed", "", map[string]interface{}{
		"table":   table,
		"line_id": lineID,
	})
	return true
}

// TableTotal is zero for a table without an open order.
func (b *Book) TableTotal(table int) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if order, ok := b.tables[table]; ok {
		return order.Total()
	}
	return decimal.Zero
}

// Order returns a copy of the table's open order.
func (b *Book) Order(table int) (models.TableOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.tables[table]
	if !ok {
		return models.TableOrder{}, false
	}
	return order.Clone(), true
}

// Orders returns copies of every open order by ascending table number.
func (b *Book) Orders() []models.TableOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.TableOrder, 0, len(b.tables))
	for _, order := range b.tables {
		out = append(out, order.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out
}

// TableStatus is the occupancy of one table.
type TableStatus struct {
	TableNumber int             `json:"table_number"`
	Occupied    bool            `json:"occupied"`
	LineCount   int             `json:"line_count"`
	Total       decimal.Decimal `json:"total"`
	// InRoster is false for a table removed from the catalog while its
	// order is still open.
	InRoster bool `json:"in_roster"`
}

// Statuses reports every roster table plus any open table missing from it.
func (b *Book) Statuses(roster []int) []TableStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[int]bool, len(roster))
	out := make([]TableStatus, 0, len(roster))
	for _, n := range roster {
		seen[n] = true
		out = append(out, b.statusLocked(n, true))
	}
	for n := range b.tables {
		if !seen[n] {
			out = append(out, b.statusLocked(n, false))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out
}

func (b *Book) statusLocked(n int, inRoster bool) TableStatus {
	st := TableStatus{TableNumber: n, Total: decimal.Zero, InRoster: inRoster}
	if order, ok := b.tables[n]; ok {
		st.Occupied = true
		st.LineCount = len(order.Lines)
		st.Total = order.Total()
	}
	return st
}

// ClearTable drops the table's order without charging it.
func (b *Book) ClearTable(table int) bool {
	b.mu.Lock()
	if _, ok := b.tables[table]; !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.tables, table)
	b.persistLocked()
	b.mu.Unlock()

	b.logger.Info("table_cleared", "Table cleared without settlement", "", map[string]interface{}{"table": table})
	return true
}

// Settle closes the table into a ticket. The ticket is added to history and
// the table removed only after both snapshots have been written together;
// if that write fails nothing changes and the error wraps
// ErrPersistenceFailure.
func (b *Book) Settle(ctx context.Context, table int, taxRate decimal.Decimal) (models.Ticket, error) {
	ticket, err := b.settle(ctx, table, taxRate)
	if err != nil {
		return models.Ticket{}, err
	}

	b.logger.Info("table_settled", fmt.Sprintf("Table %d settled", table), "", map[string]interface{}{
		"table":     table,
		"ticket_id": ticket.ID,
		"subtotal":  ticket.Subtotal.StringFixed(2),
		"tax":       ticket.TaxAmount.StringFixed(2),
		"total":     ticket.Total.StringFixed(2),
	})

	if b.publisher != nil {
		msg := models.NewTicketSettledMessage(ticket, "pos-service")
		if err := b.publisher.PublishTicketSettled(ctx, msg); err != nil {
			b.logger.Error("ticket_publish_failed", "Failed to publish settled ticket", "", err, map[string]interface{}{
				"ticket_id": ticket.ID,
			})
		}
	}
	return ticket, nil
}

func (b *Book) settle(ctx context.Context, table int, taxRate decimal.Decimal) (models.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.tables[table]
	if !ok || len(order.Lines) == 0 {
		return models.Ticket{}, fmt.Errorf("%w: table %d", models.ErrEmptyTable, table)
	}

	ticket := models.NewTicket(b.tickets.Generate().String(), *order, taxRate, b.now())

	remaining, err := b.encodeLocked(table)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("encode orders: %w", err)
	}
	stage, err := b.history.Stage(ticket)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("encode history: %w", err)
	}

	err = b.store.SaveNow(ctx, map[string]string{
		storage.KeyHistory: stage.Payload,
		storage.KeyOrders:  remaining,
	})
	if err != nil {
		stage.Discard()
		b.logger.Error("settle_failed", fmt.Sprintf("Failed to persist settlement of table %d", table), "", err, map[string]interface{}{
			"table": table,
		})
		return models.Ticket{}, fmt.Errorf("%w: settle table %d: %v", models.ErrPersistenceFailure, table, err)
	}

	stage.Commit()
	delete(b.tables, table)
	return ticket, nil
}

// persistLocked queues the current snapshot. Caller holds b.mu.
func (b *Book) persistLocked() {
	payload, err := b.encodeLocked(0)
	if err != nil {
		b.logger.Error("orders_encode_failed", "Failed to encode open orders", "", err, nil)
		return
	}
	b.store.Save(storage.KeyOrders, payload)
}

// encodeLocked serializes the open orders, leaving out table skip.
func (b *Book) encodeLocked(skip int) (string, error) {
	snapshot := make(map[int]*models.TableOrder, len(b.tables))
	for n, order := range b.tables {
		if n != skip {
			snapshot[n] = order
		}
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
