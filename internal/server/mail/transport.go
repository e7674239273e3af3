// Package mail renders and delivers the transactional emails of the auth
// flows. Delivery goes through a Transport: directly over SMTP, or queued
// on RabbitMQ for cmd/mailer to pick up.
package mail

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Message is a rendered email. It is also the JSON payload of queued mail.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Transport hands a message to the next hop. Errors are treated as
// transient and retried by the caller.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultRetryPause is the fixed pause between delivery attempts.
const DefaultRetryPause = time.Second

// sendWithRetry calls t up to attempts times, pausing between failures.
func sendWithRetry(ctx context.Context, t Transport, msg Message, attempts int, pause time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	if pause <= 0 {
		pause = DefaultRetryPause
	}

	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(pause))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := t.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// redact keeps the first characters of an address for logs.
func redact(addr string) string {
	if len(addr) <= 3 {
		return "***"
	}
	return addr[:3] + "***"
}
