package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("broker did not confirm message")

// AMQPTransport queues messages on a durable RabbitMQ queue. A send counts
// as successful only once the broker has confirmed the publish.
type AMQPTransport struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu      sync.Mutex
	publish func(ctx context.Context, p amqp.Publishing) (bool, error)
}

// DialAMQP connects to url, enables publisher confirms and declares queue.
func DialAMQP(url, queue string) (*AMQPTransport, error) {
	const op = "mail.DialAMQP"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t := &AMQPTransport{conn: conn, ch: ch, queue: queue}
	t.publish = t.publishConfirmed
	return t, nil
}

func (t *AMQPTransport) publishConfirmed(ctx context.Context, p amqp.Publishing) (bool, error) {
	dc, err := t.ch.PublishWithDeferredConfirmWithContext(ctx, "", t.queue, false, false, p)
	if err != nil {
		return false, err
	}
	return dc.WaitContext(ctx)
}

func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	// confirms are matched to publishes in channel order
	t.mu.Lock()
	defer t.mu.Unlock()

	acked, err := t.publish(ctx, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

// Close releases the channel and the connection.
func (t *AMQPTransport) Close() error {
	var errs []error
	if t.ch != nil {
		errs = append(errs, t.ch.Close())
	}
	if t.conn != nil {
		errs = append(errs, t.conn.Close())
	}
	return errors.Join(errs...)
}
