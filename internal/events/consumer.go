package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bookstore/catalog/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errInvalidLike = errors.New("like event needs user_id and product_id")

// LikeStore applies like events to the catalog
type LikeStore interface {
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
}

// Consumer keeps the product_likes table in sync with like events
type Consumer struct {
	link        *link
	serviceName string
	likes       LikeStore
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// NewConsumer connects to RabbitMQ and declares the exchange
func NewConsumer(url, serviceName string, likes LikeStore, m *metrics.Metrics, log *zap.Logger) (*Consumer, error) {
	l, err := dial(url)
	if err != nil {
		return nil, err
	}

	log.Info("Consumer connected to RabbitMQ", zap.String("exchange", ExchangeName))

	return &Consumer{
		link:        l,
		serviceName: serviceName,
		likes:       likes,
		metrics:     m,
		log:         log,
	}, nil
}

// QueueName is the durable queue this service consumes from
func (c *Consumer) QueueName() string {
	return fmt.Sprintf("%s.likes.queue", c.serviceName)
}

// DeadLetterQueueName holds like events that could not be applied
func (c *Consumer) DeadLetterQueueName() string {
	return fmt.Sprintf("%s.likes.dlq", c.serviceName)
}

func (c *Consumer) declareDeadLetter() error {
	ch := c.link.channel
	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}
	dlq, err := ch.QueueDeclare(c.DeadLetterQueueName(), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}
	if err := ch.QueueBind(dlq.Name, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}
	return nil
}

// Start consumes like events until ctx is done or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.declareDeadLetter(); err != nil {
		return err
	}

	queue, err := c.link.channel.QueueDeclare(
		c.QueueName(),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": DeadLetterExchange},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{EventTypeLikeAdded, EventTypeLikeRemoved} {
		if err := c.link.channel.QueueBind(queue.Name, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
		c.log.Info("Listening for events", zap.String("routing_key", key))
	}

	msgs, err := c.link.channel.Consume(
		queue.Name,
		c.serviceName, // consumer tag
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	log := c.log.With(zap.String("routing_key", msg.RoutingKey), zap.String("message_id", msg.MessageId))

	var apply func(context.Context, int64, int64) error
	switch msg.RoutingKey {
	case EventTypeLikeAdded:
		apply = c.likes.Add
	case EventTypeLikeRemoved:
		apply = c.likes.Remove
	default:
		log.Warn("Unknown event type")
		c.settle(msg, "unknown", msg.Nack(false, false))
		return
	}

	like, err := decodeLike(msg.Body)
	if err != nil {
		log.Error("Rejecting like event", zap.Error(err))
		c.settle(msg, "rejected", msg.Nack(false, false))
		return
	}

	if err := apply(ctx, like.UserID, like.ProductID); err != nil {
		// one retry, then the broker moves the delivery to the dead letter queue
		requeue := !msg.Redelivered
		outcome := "requeued"
		if !requeue {
			outcome = "dead_lettered"
		}
		log.Error("Failed to apply like event",
			zap.Int64("user_id", like.UserID),
			zap.Int64("product_id", like.ProductID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		c.settle(msg, outcome, msg.Nack(false, requeue))
		return
	}

	log.Debug("Like event applied",
		zap.Int64("user_id", like.UserID),
		zap.Int64("product_id", like.ProductID),
	)
	c.settle(msg, "ok", msg.Ack(false))
}

func (c *Consumer) settle(msg amqp.Delivery, outcome string, err error) {
	c.metrics.EventConsumed(msg.RoutingKey, outcome)
	if err != nil {
		c.log.Error("Failed to settle delivery", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
	}
}

func decodeLike(body []byte) (LikeChanged, error) {
	var event Event[LikeChanged]
	if err := json.Unmarshal(body, &event); err != nil {
		return LikeChanged{}, fmt.Errorf("unmarshal like event: %w", err)
	}
	if event.Payload.UserID <= 0 || event.Payload.ProductID <= 0 {
		return LikeChanged{}, errInvalidLike
	}
	return event.Payload, nil
}

// IsHealthy reports whether the broker connection is open
func (c *Consumer) IsHealthy() bool {
	return c.link.healthy()
}

// Close releases the broker connection
func (c *Consumer) Close() error {
	return c.link.close()
}
