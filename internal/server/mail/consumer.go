package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the mail queue and delivers every message through a
// Transport, normally SMTP.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	deliver  Transport
	attempts int
	pause    time.Duration
	logger   logging.Logger
}

// NewConsumer opens a channel on conn and declares queue with the same
// arguments the publisher uses.
func NewConsumer(conn *amqp.Connection, queue string, deliver Transport, attempts int, pause time.Duration, logger logging.Logger) (*Consumer, error) {
	const op = "mail.NewConsumer"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Consumer{ch: ch, queue: queue, deliver: deliver, attempts: attempts, pause: pause, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info(ctx, "mail consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks delivered mail, drops undecodable payloads and requeues a
// failed message once.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error(ctx, "dropping malformed mail payload", logging.Err(err))
		_ = d.Nack(false, false)
		return
	}

	if err := sendWithRetry(ctx, c.deliver, msg, c.attempts, c.pause); err != nil {
		c.logger.Error(ctx, "mail delivery failed", "to", redact(msg.To), "redelivered", d.Redelivered, logging.Err(err))
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	c.logger.Info(ctx, "mail delivered", "to", redact(msg.To), "subject", msg.Subject)
	_ = d.Ack(false)
}

// Close releases the consumer channel.
func (c *Consumer) Close() error {
	return c.ch.Close()
}
