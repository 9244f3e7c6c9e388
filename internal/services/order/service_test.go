package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/catalog"
	"restaurant-pos/internal/services/history"
	"restaurant-pos/internal/storage"
)

var settledAt = time.Date(2026, 5, 11, 20, 30, 0, 0, time.UTC)

// switchStore fails SetMany while broken is set.
type switchStore struct {
	*storage.MemoryStore
	mu     sync.Mutex
	broken bool
}

func (s *switchStore) setBroken(v bool) {
	s.mu.Lock()
	s.broken = v
	s.mu.Unlock()
}

func (s *switchStore) SetMany(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.New("disk full")
	}
	return s.MemoryStore.SetMany(ctx, entries)
}

func (s *switchStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

type fixture struct {
	book    *Book
	history *history.History
	catalog *catalog.Service
	syncer  *storage.Syncer
	store   *switchStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := &switchStore{MemoryStore: storage.NewMemoryStore()}
	syncer := storage.NewSyncer(store, logger.NewNop())
	t.Cleanup(func() { syncer.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cat := catalog.NewService(syncer, logger.NewNop())
	hist := history.New(syncer, logger.NewNop(), history.WithLocation(time.UTC))

	n := 0
	defaults := []Option{
		WithClock(func() time.Time { return settledAt }),
		WithLineIDs(func() string {
			n++
			return fmt.Sprintf("line-%d", n)
		}),
	}
	book := NewBook(syncer, hist, cat, node, logger.NewNop(), append(defaults, opts...)...)
	return &fixture{book: book, history: hist, catalog: cat, syncer: syncer, store: store}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddLineMergesAndSettles(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(3, "Taco Carnitas", dec("27"), dec("2"))
	require.NoError(t, err)
	line, err := f.book.AddLine(3, "Taco Carnitas", dec("27"), dec("1"))
	require.NoError(t, err)

	order, ok := f.book.Order(3)
	require.True(t, ok)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, "3", order.Lines[0].Quantity.String())
	assert.Equal(t, "81.00", order.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "81.00", f.book.TableTotal(3).StringFixed(2))

	ticket, err := f.book.Settle(context.Background(), 3, dec("0.08"))
	require.NoError(t, err)
	assert.Equal(t, "81.00", ticket.Subtotal.StringFixed(2))
	assert.Equal(t, "6.48", ticket.TaxAmount.StringFixed(2))
	assert.Equal(t, "87.48", ticket.Total.StringFixed(2))
	assert.Equal(t, 3, ticket.TableNumber)
	assert.Equal(t, settledAt, ticket.SettledAt)
	assert.NotEmpty(t, ticket.ID)

	_, ok = f.book.Order(3)
	assert.False(t, ok)
	assert.True(t, f.book.TableTotal(3).IsZero())

	all := f.history.All()
	require.Len(t, all, 1)
	assert.Equal(t, ticket.ID, all[0].ID)
}

func TestAddLineMergeKeepsCapturedPrice(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(1, "Agua natural", dec("5"), dec("1"))
	require.NoError(t, err)
	_, err = f.book.AddLine(1, "Agua natural", dec("7"), dec("1"))
	require.NoError(t, err)

	order, _ := f.book.Order(1)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "5", order.Lines[0].UnitPrice.String())
	assert.Equal(t, "10", order.Lines[0].LineTotal.String())
}

func TestAddLineRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(2, "Taco asada cesina", dec("12"), dec("0"))
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = f.book.AddLine(2, "Taco asada cesina", dec("12"), dec("-1"))
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = f.book.AddLine(0, "Taco asada cesina", dec("12"), dec("1"))
	assert.ErrorIs(t, err, models.ErrTableNotFound)

	_, open := f.book.Order(2)
	assert.False(t, open, "a rejected first line must not open the table")
}

func TestAddProductResolvesThroughCatalog(t *testing.T) {
	f := newFixture(t)

	line, err := f.book.AddProduct(4, models.SectionTacos, "asada", "bistec", dec("2"))
	require.NoError(t, err)
	assert.Equal(t, "Taco asada bistec", line.ProductName)
	assert.Equal(t, "24", line.LineTotal.String())

	line, err = f.book.AddProduct(4, models.SectionSpecialties, "carnitas", "maciza", dec("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "Carnitas maciza (kg)", line.ProductName)
	assert.Equal(t, "50", line.LineTotal.String())

	_, err = f.book.AddProduct(4, models.SectionTacos, "asada", "pastor", dec("1"))
	assert.ErrorIs(t, err, models.ErrPriceNotFound)

	_, err = f.book.AddProduct(4, models.SectionSpecialties, "carnitas", "kilo", dec("1"))
	assert.ErrorIs(t, err, models.ErrPriceNotFound)
}

func TestRemoveLineIsIdempotent(t *testing.T) {
	f := newFixture(t)

	a, err := f.book.AddLine(5, "Refresco coca", dec("8"), dec("1"))
	require.NoError(t, err)
	_, err = f.book.AddLine(5, "Agua natural", dec("5"), dec("2"))
	require.NoError(t, err)

	assert.True(t, f.book.RemoveLine(5, a.ID))
	assert.False(t, f.book.RemoveLine(5, a.ID))
	assert.False(t, f.book.RemoveLine(5, "missing"))
	assert.False(t, f.book.RemoveLine(42, a.ID))
	assert.Equal(t, "10", f.book.TableTotal(5).String())
}

func TestRemovingLastLineClosesTable(t *testing.T) {
	f := newFixture(t)

	line, err := f.book.AddLine(6, "Refresco pepsi", dec("8"), dec("1"))
	require.NoError(t, err)
	require.True(t, f.book.RemoveLine(6, line.ID))

	_, open := f.book.Order(6)
	assert.False(t, open)

	_, err = f.book.Settle(context.Background(), 6, dec("0.08"))
	assert.ErrorIs(t, err, models.ErrEmptyTable)
}

func TestSettleEmptyTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.Settle(context.Background(), 7, dec("0.08"))
	assert.ErrorIs(t, err, models.ErrEmptyTable)
	assert.Empty(t, f.history.All())
}

func TestSettlePersistenceFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.AddLine(3, "Taco carnitas surtida", dec("10"), dec("4"))
	require.NoError(t, err)
	require.NoError(t, f.syncer.Flush(ctx))

	f.store.setBroken(true)
	_, err = f.book.Settle(ctx, 3, dec("0.08"))
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	order, open := f.book.Order(3)
	require.True(t, open)
	assert.Equal(t, "40", order.Total().String())
	assert.Empty(t, f.history.All())

	f.store.setBroken(false)
	ticket, err := f.book.Settle(ctx, 3, dec("0.08"))
	require.NoError(t, err)
	assert.Equal(t, "43.20", ticket.Total.StringFixed(2))
	assert.Len(t, f.history.All(), 1)
}

func TestFailedSettleIsNotReplayedBySyncRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.AddLine(3, "Taco carnitas surtida", dec("10"), dec("4"))
	require.NoError(t, err)
	require.NoError(t, f.syncer.Flush(ctx))

	f.store.setBroken(true)
	_, err = f.book.Settle(ctx, 3, dec("0.08"))
	require.ErrorIs(t, err, models.ErrPersistenceFailure)

	st := f.syncer.Status()
	assert.True(t, st.InSync)
	assert.Empty(t, st.FailedKeys)

	f.store.setBroken(false)
	_, err = f.book.AddLine(5, "Agua natural", dec("5"), dec("1"))
	require.NoError(t, err)
	require.NoError(t, f.syncer.Retry(ctx))
	require.NoError(t, f.syncer.Flush(ctx))

	hist := history.New(f.syncer, logger.NewNop(), history.WithLocation(time.UTC))
	require.NoError(t, hist.Load(ctx))
	assert.Empty(t, hist.All())

	reloaded := NewBook(f.syncer, hist, f.catalog, nil, logger.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	order, open := reloaded.Order(3)
	require.True(t, open)
	assert.Equal(t, "40", order.Total().String())
	_, open = reloaded.Order(5)
	assert.True(t, open)
}

func TestTicketIsIndependentOfLaterEdits(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(2, "Agua saborizada", dec("6"), dec("1"))
	require.NoError(t, err)
	ticket, err := f.book.Settle(context.Background(), 2, dec("0.08"))
	require.NoError(t, err)

	_, err = f.book.AddLine(2, "Agua saborizada", dec("6"), dec("5"))
	require.NoError(t, err)

	stored, ok := f.history.Get(ticket.ID)
	require.True(t, ok)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "1", stored.Lines[0].Quantity.String())
	assert.Equal(t, "6.48", stored.Total.StringFixed(2))
}

func TestTicketIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}

	for i := 0; i < 20; i++ {
		_, err := f.book.AddLine(1, "Refresco sprite", dec("8"), dec("1"))
		require.NoError(t, err)
		ticket, err := f.book.Settle(context.Background(), 1, decimal.Zero)
		require.NoError(t, err)
		assert.False(t, seen[ticket.ID], "duplicate ticket id %s", ticket.ID)
		seen[ticket.ID] = true
	}
}

func TestStatusesIncludesOpenTablesOffRoster(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(2, "Agua natural", dec("5"), dec("1"))
	require.NoError(t, err)
	_, err = f.book.AddLine(12, "Agua natural", dec("5"), dec("3"))
	require.NoError(t, err)

	statuses := f.book.Statuses([]int{1, 2, 3})
	require.Len(t, statuses, 4)
	assert.Equal(t, TableStatus{TableNumber: 1, Total: decimal.Zero, InRoster: true}, statuses[0])
	assert.True(t, statuses[1].Occupied)
	assert.Equal(t, 1, statuses[1].LineCount)
	assert.False(t, statuses[2].Occupied)
	assert.Equal(t, 12, statuses[3].TableNumber)
	assert.False(t, statuses[3].InRoster)
	assert.Equal(t, "15", statuses[3].Total.String())
}

func TestClearTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.book.AddLine(8, "Refresco coca", dec("8"), dec("2"))
	require.NoError(t, err)

	assert.True(t, f.book.ClearTable(8))
	assert.False(t, f.book.ClearTable(8))
	assert.Empty(t, f.history.All())
}

func TestOrdersRoundTripThroughStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.AddLine(3, "Taco carnitas maciza", dec("10"), dec("2"))
	require.NoError(t, err)
	_, err = f.book.AddLine(1, "Carnitas surtida (kg)", dec("100"), dec("0.75"))
	require.NoError(t, err)
	require.NoError(t, f.syncer.Flush(ctx))

	reloaded := NewBook(f.syncer, f.history, f.catalog, nil, logger.NewNop())
	require.NoError(t, reloaded.Load(ctx))

	want, err := json.Marshal(f.book.Orders())
	require.NoError(t, err)
	got, err := json.Marshal(reloaded.Orders())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestLoadCorruptOrdersStartsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.MemoryStore.Set(ctx, storage.KeyOrders, "{not json"))

	require.NoError(t, f.book.Load(ctx))
	assert.Empty(t, f.book.Orders())

	raw, err := f.store.Get(ctx, storage.KeyOrders)
	require.NoError(t, err)
	assert.Equal(t, "{not json", raw)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*models.TicketSettledMessage
	err  error
}

func (p *recordingPublisher) PublishTicketSettled(_ context.Context, msg *models.TicketSettledMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestSettlePublishesTicket(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub))

	_, err := f.book.AddLine(4, "Refresco coca", dec("8"), dec("1"))
	require.NoError(t, err)
	ticket, err := f.book.Settle(context.Background(), 4, dec("0.08"))
	require.NoError(t, err)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, ticket.ID, pub.msgs[0].Ticket.ID)
	assert.Equal(t, "pos-service", pub.msgs[0].PublishedBy)
}

func TestSettleSucceedsWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f := newFixture(t, WithPublisher(pub))

	_, err := f.book.AddLine(4, "Refresco coca", dec("8"), dec("1"))
	require.NoError(t, err)
	_, err = f.book.Settle(context.Background(), 4, dec("0.08"))
	require.NoError(t, err)
	assert.Len(t, f.history.All(), 1)
}
