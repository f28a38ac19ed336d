package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/spotevents/spot/internal/application"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes notifications to a topic exchange, routed by type.
type AMQPPublisher struct {
	exchange string
	logger   *slog.Logger

	// amqp channels must not be shared between goroutines.
	mu      sync.Mutex
	channel Channel
	conn    *amqp.Connection
}

// DialAMQP connects to url and declares exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: open channel: %w", err)
	}
	publisher, err := NewAMQPPublisher(channel, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher.conn = conn
	return publisher, nil
}

// NewAMQPPublisher declares a durable topic exchange on channel.
func NewAMQPPublisher(channel Channel, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "spot.events"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := channel.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("broadcast: declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{exchange: exchange, channel: channel, logger: logger.With("component", "amqp")}, nil
}

// Publish implements application.Broadcaster.
func (p *AMQPPublisher) Publish(ctx context.Context, notification application.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("broadcast: encode %s: %w", notification.Type, err)
	}
	timestamp := notification.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    timestamp.UTC(),
		Type:         notification.Type,
		Headers:      amqp.Table{"eventId": notification.EventID},
		Body:         body,
	}

	p.mu.Lock()
	err = p.channel.Publish(p.exchange, notification.Type, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("broadcast: publish %s: %w", notification.Type, err)
	}
	p.logger.DebugContext(ctx, "notification published", "type", notification.Type, "event_id", notification.EventID)
	return nil
}

// Close releases the channel and, when dialled here, the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
