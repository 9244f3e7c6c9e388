package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
)

const handleTimeout = 30 * time.Second

// ErrMalformed marks a message that can never be processed. It is dropped
// instead of requeued.
var ErrMalformed = errors.New("malformed message")

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, body []byte) error

// outcome is what happens to a delivery once its handler returns.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

func (o outcome) String() string {
	switch o {
	case outcomeAck:
		return "ack"
	case outcomeRequeue:
		return "requeue"
	default:
		return "drop"
	}
}

// decide maps a handler result to an outcome. A failed message is requeued
// once; a second failure drops it so a stuck printer cannot spin the queue.
func decide(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrMalformed), redelivered:
		return outcomeDrop
	default:
		return outcomeRequeue
	}
}

// Consumer reads settled tickets from a queue with manual acknowledgement.
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming hands every delivery to handler until ctx ends. A closed
// delivery channel triggers a reconnect and a fresh subscription.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		msgs, err := c.subscribe(ctx)
		if err != nil {
			return err
		}

		if !c.drain(ctx, msgs, handler) {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		}

		c.logger.Error("consumer_channel_closed", "Delivery channel closed, reconnecting", "", nil, map[string]interface{}{
			"queue": c.queueName,
		})
		if err := c.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp091.Delivery, error) {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(ctx); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	channel := c.conn.Channel()
	if err := channel.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	// manual ack, not exclusive
	msgs, err := channel.Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started", fmt.Sprintf("Started consuming from queue %s", c.queueName), "", map[string]interface{}{
		"queue":    c.queueName,
		"consumer": c.consumerTag,
		"prefetch": c.prefetch,
	})
	return msgs, nil
}

// drain handles deliveries until ctx ends (false) or msgs closes (true).
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler MessageHandler) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-msgs:
			if !ok {
				return true
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler MessageHandler) {
	start := time.Now()

	handleCtx, cancel := context.WithTimeout(ctx, handleTimeout)
	err := handler(handleCtx, d.Body)
	cancel()

	result := decide(err, d.Redelivered)
	fields := map[string]interface{}{
		"queue":        c.queueName,
		"message_id":   d.MessageId,
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
		"outcome":      result.String(),
		"duration_ms":  time.Since(start).Milliseconds(),
	}

	var ackErr error
	switch result {
	case outcomeAck:
		c.logger.Debug("message_processed", "Message handled", "", fields)
		ackErr = d.Ack(false)
	case outcomeRequeue:
		c.logger.Error("message_processing_failed", "Message failed, requeued", "", err, fields)
		ackErr = d.Nack(false, true)
	default:
		c.logger.Error("message_dropped", "Message failed, dropped", "", err, fields)
		ackErr = d.Nack(false, false)
	}
	if ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to acknowledge message", "", ackErr, fields)
	}
}

// ParseMessage parses a JSON message into v. Syntax errors wrap ErrMalformed.
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Close cancels the subscription and closes the connection.
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
		c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
	}
	return c.conn.Close()
}
