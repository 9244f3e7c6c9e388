package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
)

// Topology names.
const (
	TicketsExchange = "tickets_fanout"
	ReceiptsQueue   = "receipts_queue"
)

const maxRetries = 5

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New dials url, retrying with a growing wait until ctx ends.
func New(ctx context.Context, url string, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    url,
	}

	if err := conn.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return conn, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Connection) connect(ctx context.Context) error {
	var err error

	for i := 0; i < maxRetries; i++ {
		if err = c.dial(); err == nil {
			c.logger.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
				"exchange": TicketsExchange,
			})
			return nil
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := setupTopology(channel); err != nil {
		c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", err, nil)
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

// setupTopology declares the tickets fanout exchange and binds the receipts
// queue to it.
func setupTopology(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		TicketsExchange, // name
		"fanout",        // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", TicketsExchange, err)
	}

	_, err = ch.QueueDeclare(
		ReceiptsQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		amqp091.Table{
			"x-message-ttl": 86400000, // one business day
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", ReceiptsQueue, err)
	}

	err = ch.QueueBind(
		ReceiptsQueue,   // queue name
		"",              // routing key (ignored for fanout)
		TicketsExchange, // exchange
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", ReceiptsQueue, err)
	}
	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ
func (c *Connection) Reconnect(ctx context.Context) error {
	c.Close()
	return c.connect(ctx)
}
