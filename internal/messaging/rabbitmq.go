package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	ExchangeName = "ortho.events"
	ExchangeType = "topic"
)

var errPublisherClosed = errors.New("publisher is closed")

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends domain events to the ortho.events topic exchange. A
// dropped connection is re-established on the next Publish.
type Publisher struct {
	url      string
	exchange string
	logger   zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpChannel
	closed  bool
}

// NewPublisher dials RabbitMQ and declares the topic exchange.
func NewPublisher(rabbitmqURL string, logger zerolog.Logger) (*Publisher, error) {
	if rabbitmqURL == "" {
		return nil, fmt.Errorf("missing rabbitmq url")
	}

	p := &Publisher{
		url:      rabbitmqURL,
		exchange: ExchangeName,
		logger:   logger.With().Str("component", "messaging").Logger(),
	}
	p.logger.Info().Str("url", maskPassword(rabbitmqURL)).Msg("connecting to RabbitMQ")
	if err := p.connect(); err != nil {
		return nil, err
	}
	p.logger.Info().Str("exchange", p.exchange).Msg("connected to RabbitMQ")
	return p, nil
}

// connect must be called with mu held (or before p is shared).
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	p.conn, p.channel = conn, ch
	return nil
}

func (p *Publisher) currentChannel() (amqpChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errPublisherClosed
	}
	if p.channel != nil && (p.conn == nil || !p.conn.IsClosed()) {
		return p.channel, nil
	}
	p.logger.Warn().Msg("RabbitMQ connection lost, reconnecting")
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p.channel, nil
}

func (p *Publisher) dropChannel(ch amqpChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == ch {
		_ = ch.Close()
		p.channel = nil
	}
}

// Publish sends eventData under routingKey. Events carrying a BaseEvent reuse
// its id as the AMQP message id so consumers can deduplicate. A nil
// publisher skips the event.
func (p *Publisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    messageID(eventData),
		Type:         routingKey,
		AppId:        serviceName,
	}

	for attempt := 0; attempt < 2; attempt++ {
		ch, err := p.currentChannel()
		if err != nil {
			return fmt.Errorf("failed to publish event to %s: %w", routingKey, err)
		}
		err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
		if err == nil {
			p.logger.Debug().Str("routing_key", routingKey).Str("message_id", msg.MessageId).Msg("published event")
			return nil
		}
		if !errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("failed to publish event to %s: %w", routingKey, err)
		}
		p.dropChannel(ch)
	}
	return fmt.Errorf("failed to publish event to %s: %w", routingKey, amqp.ErrClosed)
}

func messageID(event interface{}) string {
	if e, ok := event.(interface{ ID() string }); ok && e.ID() != "" {
		return e.ID()
	}
	return uuid.NewString()
}

// Close closes the channel and connection. Later publishes fail.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("error closing RabbitMQ channel")
		}
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
