package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// Consumer delivers raw messages to a handler until ctx ends.
type Consumer interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber prints a receipt for every settled ticket it receives
type Subscriber struct {
	consumer Consumer
	logger   *logger.Logger
	loc      *time.Location

	mu  sync.Mutex
	out io.Writer
}

// NewSubscriber creates a receipt subscriber writing to stdout
func NewSubscriber(consumer Consumer, log *logger.Logger, loc *time.Location) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		loc:      loc,
		out:      os.Stdout,
	}
}

// SetOutput redirects printed receipts.
func (s *Subscriber) SetOutput(w io.Writer) {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()
}

// Start consumes until ctx is cancelled, then closes the consumer.
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Receipt subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.HandleTicket)

	s.logger.Info("graceful_shutdown", "Stopping receipt subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// HandleTicket processes one TicketSettledMessage body
func (s *Subscriber) HandleTicket(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var msg models.TicketSettledMessage
	if err := messaging.ParseMessage(body, &msg); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse settled ticket", requestID, err, nil)
		return err
	}
	if msg.Ticket.ID == "" {
		return fmt.Errorf("%w: ticket id missing", messaging.ErrMalformed)
	}
	if err := msg.Ticket.Verify(); err != nil {
		s.logger.Warn("ticket_inconsistent", "Received ticket totals do not match its lines", requestID, map[string]interface{}{
			"ticket_id": msg.Ticket.ID,
			"reason":    err.Error(),
		})
	}

	s.mu.Lock()
	_, err := fmt.Fprintln(s.out, models.ReceiptText(msg.Ticket, s.loc))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to print receipt: %w", err)
	}

	s.logger.Info("receipt_printed", fmt.Sprintf("Receipt printed for table %d", msg.Ticket.TableNumber), requestID, map[string]interface{}{
		"ticket_id":    msg.Ticket.ID,
		"table":        msg.Ticket.TableNumber,
		"total":        msg.Ticket.Total.StringFixed(2),
		"published_by": msg.PublishedBy,
	})
	return nil
}
