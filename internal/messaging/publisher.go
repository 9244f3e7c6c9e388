package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const publishTimeout = 10 * time.Second

// channelPublisher is the part of amqp091.Channel used to publish.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
	// channel overrides conn.Channel(); set in tests.
	channel func() channelPublisher
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	p := &Publisher{
		conn:   conn,
		logger: log,
	}
	p.channel = func() channelPublisher { return p.conn.Channel() }
	return p
}

// PublishTicketSettled announces a settled ticket on the tickets exchange.
func (p *Publisher) PublishTicketSettled(ctx context.Context, msg *models.TicketSettledMessage) error {
	return p.publishMessage(ctx, TicketsExchange, "", msg.Ticket.ID, msg, true)
}

// publishMessage publishes message as JSON. messageID lets consumers
// correlate redeliveries.
func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey, messageID string, message interface{}, persistent bool) error {
	if p.conn != nil && p.conn.IsClosed() {
		if err := p.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         body,
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel().PublishWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		publishing,
	)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			"", err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
				"message_id":  messageID,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", exchange),
		"", map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_size": len(body),
		})
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
