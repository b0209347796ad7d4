package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultDialTimeout bounds how long a publish waits for the broker.
const DefaultDialTimeout = 2 * time.Second

// Publisher publishes lifecycle events to RabbitMQ.  Each call dials,
// declares the durable queue named after the routing key and publishes
// a persistent message on the default exchange.  Errors are logged and
// returned so the caller can choose to ignore them.
type Publisher struct {
	url         string
	dialTimeout time.Duration
	log         *zap.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, dialTimeout: DefaultDialTimeout, log: log}
}

// WithDialTimeout overrides DefaultDialTimeout.  Non-positive values are
// ignored.
func (p *Publisher) WithDialTimeout(d time.Duration) *Publisher {
	if d > 0 {
		p.dialTimeout = d
	}
	return p
}

// timeout is the dial timeout, shortened to the context deadline.
func (p *Publisher) timeout(ctx context.Context) time.Duration {
	d := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	return d
}

// Publish marshals event as JSON and sends it with routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := p.timeout(ctx)
	if d <= 0 {
		return context.DeadlineExceeded
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(d),
	})
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.String("key", routingKey), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.String("queue", routingKey), zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("key", routingKey), zap.Error(err))
		return err
	}
	return nil
}
