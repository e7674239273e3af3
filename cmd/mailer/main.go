// Command mailer drains the mail queue filled by the server when
// DELIVEROO_MAIL_TRANSPORT=amqp and delivers each message over SMTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server/config"
	"github.com/dmitrijs2005/deliveroo/internal/server/mail"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(cfg.Env, os.Stdout).With("module", "mailer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Error(ctx, "failed to connect rabbitmq", logging.Err(err))
		os.Exit(1)
	}
	defer conn.Close()

	smtp := mail.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)

	consumer, err := mail.NewConsumer(conn, cfg.AMQPQueue, smtp, cfg.MailSendAttempts, cfg.MailRetryPause, logger)
	if err != nil {
		logger.Error(ctx, "failed to start consumer", logging.Err(err))
		os.Exit(1)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		logger.Error(ctx, "consumer stopped", logging.Err(err))
	}
	logger.Info(context.Background(), "mailer stopped")
}
