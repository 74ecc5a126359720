package events

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// link is one RabbitMQ connection with a single channel on the events exchange
type link struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// dial connects and declares the durable topic exchange both sides share
func dial(url string) (*link, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	l := &link{conn: conn, channel: ch}
	err = ch.ExchangeDeclare(ExchangeName, ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		l.close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	return l, nil
}

func (l *link) healthy() bool {
	return l != nil && l.conn != nil && !l.conn.IsClosed()
}

// close releases the channel then the connection and reports both failures
func (l *link) close() error {
	if l == nil {
		return nil
	}
	var errs []error
	if l.channel != nil {
		if err := l.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if l.conn != nil {
		if err := l.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
