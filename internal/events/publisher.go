package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookstore/catalog/internal/metrics"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

var (
	errNotAcked       = errors.New("event not acknowledged")
	errConfirmTimeout = errors.New("event confirmation timed out")
)

// confirmation resolves when the broker acks or nacks one publish
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// confirmChannel publishes a message and returns the confirmation for that message alone
type confirmChannel interface {
	publish(ctx context.Context, routingKey string, msg amqp.Publishing) (confirmation, error)
}

type amqpChannel struct {
	ch *amqp.Channel
}

func (a amqpChannel) publish(ctx context.Context, routingKey string, msg amqp.Publishing) (confirmation, error) {
	dc, err := a.ch.PublishWithDeferredConfirmWithContext(ctx, ExchangeName, routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// Publisher publishes catalog events to RabbitMQ with publisher confirms
type Publisher struct {
	link    *link
	channel confirmChannel
	metrics *metrics.Metrics
	log     *zap.Logger

	backoff        time.Duration
	confirmTimeout time.Duration
}

// NewPublisher connects, declares the exchange and enables confirms
func NewPublisher(url string, m *metrics.Metrics, log *zap.Logger) (*Publisher, error) {
	l, err := dial(url)
	if err != nil {
		return nil, err
	}
	if err := l.channel.Confirm(false); err != nil {
		l.close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	log.Info("Publisher connected to RabbitMQ", zap.String("exchange", ExchangeName))

	p := newPublisher(amqpChannel{ch: l.channel}, m, log)
	p.link = l
	return p, nil
}

func newPublisher(ch confirmChannel, m *metrics.Metrics, log *zap.Logger) *Publisher {
	return &Publisher{
		channel:        ch,
		metrics:        m,
		log:            log,
		backoff:        initialBackoff,
		confirmTimeout: confirmTimeout,
	}
}

// PublishProductRegistered announces a newly registered book product
func (p *Publisher) PublishProductRegistered(ctx context.Context, payload ProductRegistered) error {
	return publish(ctx, p, EventTypeProductRegistered, payload)
}

// PublishProductUpdated announces which fields of a product changed
func (p *Publisher) PublishProductUpdated(ctx context.Context, productID int64, fieldsChanged []string) error {
	return publish(ctx, p, EventTypeProductUpdated, ProductUpdated{
		ProductID:     productID,
		FieldsChanged: fieldsChanged,
	})
}

func publish[P any](ctx context.Context, p *Publisher, eventType string, payload P) error {
	event := Event[P]{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		Timestamp:     timestamp(),
		CorrelationID: correlationID(ctx),
		Payload:       payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		MessageId:     event.EventID,
		CorrelationId: event.CorrelationID,
		Body:          body,
		Headers: amqp.Table{
			"event_type":    eventType,
			"event_version": EventVersion,
		},
	}
	if err := p.deliver(ctx, eventType, msg); err != nil {
		p.metrics.EventPublished(eventType, "failed")
		p.log.Error("Giving up on event",
			zap.String("event_id", event.EventID),
			zap.String("routing_key", eventType),
			zap.Error(err),
		)
		return err
	}
	p.metrics.EventPublished(eventType, "ok")
	p.log.Info("Event published",
		zap.String("event_id", event.EventID),
		zap.String("routing_key", eventType),
	)
	return nil
}

// deliver retries a publish with exponential backoff until the broker acks it
func (p *Publisher) deliver(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	delay := p.backoff
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = min(delay*2, maxBackoff)
		}

		lastErr = p.attempt(ctx, routingKey, msg)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn("Event publish attempt failed",
			zap.String("routing_key", routingKey),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("publish %s: %d attempts: %w", routingKey, maxRetries, lastErr)
}

// attempt publishes once and waits for that message's own confirmation.
// A confirmation that arrives after the timeout is dropped with its message.
func (p *Publisher) attempt(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	confirm, err := p.channel.publish(ctx, routingKey, msg)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	switch {
	case err == nil && acked:
		return nil
	case err == nil:
		return errNotAcked
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return errConfirmTimeout
	default:
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsHealthy reports whether the broker connection is open
func (p *Publisher) IsHealthy() bool {
	return p.link.healthy()
}

// Close releases the broker connection
func (p *Publisher) Close() error {
	err := p.link.close()
	if err != nil {
		p.log.Warn("Publisher close failed", zap.Error(err))
	}
	return err
}

// NopPublisher drops every event. It stands in when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishProductRegistered(context.Context, ProductRegistered) error { return nil }

func (NopPublisher) PublishProductUpdated(context.Context, int64, []string) error { return nil }

func (NopPublisher) IsHealthy() bool { return true }
