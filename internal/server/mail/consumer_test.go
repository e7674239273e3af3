package mail

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue []bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = append(a.requeue, requeue)
	return nil
}
func (a *ackRecorder) Reject(uint64, bool) error { return nil }

func delivery(t *testing.T, ack amqp.Acknowledger, msg any, redelivered bool) amqp.Delivery {
	t.Helper()
	var body []byte
	switch v := msg.(type) {
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = b
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body, Redelivered: redelivered}
}

func newTestConsumer(tr Transport) *Consumer {
	return &Consumer{queue: "q", deliver: tr, attempts: 2, pause: time.Millisecond, logger: logging.Nop{}}
}

func TestConsumer_DeliversAndAcks(t *testing.T) {
	tr := &fakeTransport{}
	ack := &ackRecorder{}

	newTestConsumer(tr).handle(context.Background(), delivery(t, ack, Message{To: "a@x.com", Subject: "S"}, false))

	assert.Equal(t, 1, ack.acked)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "a@x.com", tr.sent[0].To)
}

func TestConsumer_MalformedIsDropped(t *testing.T) {
	tr := &fakeTransport{}
	ack := &ackRecorder{}

	newTestConsumer(tr).handle(context.Background(), delivery(t, ack, []byte("{nope"), false))

	assert.Equal(t, 1, ack.nacked)
	assert.Equal(t, []bool{false}, ack.requeue)
	assert.Zero(t, tr.calls)
}

func TestConsumer_FailedDeliveryRequeuedOnce(t *testing.T) {
	tr := &fakeTransport{failures: 100}
	ack := &ackRecorder{}
	c := newTestConsumer(tr)

	c.handle(context.Background(), delivery(t, ack, Message{To: "a@x.com"}, false))
	c.handle(context.Background(), delivery(t, ack, Message{To: "a@x.com"}, true))

	assert.Equal(t, []bool{true, false}, ack.requeue)
	assert.Equal(t, 4, tr.calls, "two attempts per delivery")
}
