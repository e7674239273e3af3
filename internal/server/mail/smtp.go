package mail

import (
	"context"

	"gopkg.in/gomail.v2"
)

type dialSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport delivers messages with a gomail dialer, one connection per
// message.
type SMTPTransport struct {
	dialer dialSender
}

func NewSMTPTransport(host string, port int, username, password string) *SMTPTransport {
	return &SMTPTransport{dialer: gomail.NewDialer(host, port, username, password)}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	return t.dialer.DialAndSend(m)
}
