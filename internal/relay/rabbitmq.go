package relay

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"shiptwin/internal/events"
)

// DefaultExchange is the fanout exchange alert events are published to.
const DefaultExchange = "shiptwin.alerts"

// AMQPChannel is the subset of *amqp.Channel used by RabbitSink.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitSink publishes alert and alert:resolved envelopes to a fanout
// exchange. Other kinds are ignored.
type RabbitSink struct {
	ch       AMQPChannel
	exchange string
}

func NewRabbitSink(ch AMQPChannel, exchange string) *RabbitSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &RabbitSink{ch: ch, exchange: exchange}
}

// DialRabbit connects, opens a channel and declares the durable fanout exchange.
func DialRabbit(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

func (s *RabbitSink) Name() string { return "rabbitmq" }

func (s *RabbitSink) Send(ctx context.Context, e events.Event) error {
	switch e.Kind() {
	case events.KindAlertRaised, events.KindAlertResolved:
	default:
		return nil
	}
	body, err := events.Marshal(e, time.Now())
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.ch.PublishWithContext(ctx, s.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(e.Kind()),
		Timestamp:    time.Now(),
		Body:         body,
	})
}
