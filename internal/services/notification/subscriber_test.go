package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

type stubConsumer struct {
	bodies [][]byte

	mu     sync.Mutex
	errs   []error
	closed bool
}

func (c *stubConsumer) StartConsuming(ctx context.Context, handler messaging.MessageHandler) error {
	for _, b := range c.bodies {
		err := handler(ctx, b)
		c.mu.Lock()
		c.errs = append(c.errs, err)
		c.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *stubConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *stubConsumer) handled() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func settledBody(t *testing.T) []byte {
	t.Helper()
	order := models.TableOrder{
		ID:          "order-1",
		TableNumber: 3,
		Lines: []models.OrderLine{{
			ID:          "line-1",
			ProductName: "Taco Carnitas",
			UnitPrice:   decimal.NewFromInt(27),
			Quantity:    decimal.NewFromInt(3),
			LineTotal:   decimal.NewFromInt(81),
		}},
	}
	ticket := models.NewTicket("1789000000000123456", order, decimal.RequireFromString("0.08"), time.Date(2026, 5, 11, 20, 30, 0, 0, time.UTC))
	body, err := json.Marshal(models.NewTicketSettledMessage(ticket, "pos-service"))
	require.NoError(t, err)
	return body
}

func TestHandleTicketPrintsReceipt(t *testing.T) {
	s := NewSubscriber(&stubConsumer{}, logger.NewNop(), time.UTC)
	var out bytes.Buffer
	s.SetOutput(&out)

	require.NoError(t, s.HandleTicket(context.Background(), settledBody(t)))

	receipt := out.String()
	assert.Contains(t, receipt, "Ticket #123456")
	assert.Contains(t, receipt, "Table: 3")
	assert.Contains(t, receipt, "3 x Taco Carnitas  $81.00")
	assert.Contains(t, receipt, "Tax (8%): $6.48")
	assert.Contains(t, receipt, "Total: $87.48")
}

func TestHandleTicketRejectsMalformed(t *testing.T) {
	s := NewSubscriber(&stubConsumer{}, logger.NewNop(), time.UTC)
	var out bytes.Buffer
	s.SetOutput(&out)

	assert.ErrorIs(t, s.HandleTicket(context.Background(), []byte("not json")), messaging.ErrMalformed)
	assert.ErrorIs(t, s.HandleTicket(context.Background(), []byte(`{"ticket":{}}`)), messaging.ErrMalformed)
	assert.Empty(t, out.String())
}

func TestStartClosesConsumerOnCancel(t *testing.T) {
	consumer := &stubConsumer{bodies: [][]byte{settledBody(t)}}
	s := NewSubscriber(consumer, logger.NewNop(), time.UTC)
	var out bytes.Buffer
	s.SetOutput(&out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return len(consumer.handled()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.True(t, consumer.closed)
	assert.NoError(t, consumer.handled()[0])
}
