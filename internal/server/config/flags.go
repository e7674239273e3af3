package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-f string   frontend URL used in reset links
//	-b string   API base URL used in verification links
//	-m string   mail transport ("smtp" or "amqp")
//	-e string   environment ("local", "dev", "prod")
//
// Unknown arguments are dropped with flagx.FilterArgs before parsing so the
// -c/-config flag and subcommand flags do not collide.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run the health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	sessionTTL := fs.Int("t", int(config.SessionTokenTTL.Minutes()), "session_token_ttl (in minutes)")
	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend URL")
	fs.StringVar(&config.APIBaseURL, "b", config.APIBaseURL, "API base URL")
	fs.StringVar(&config.MailTransport, "m", config.MailTransport, "mail transport: smtp or amqp")
	fs.StringVar(&config.Env, "e", config.Env, "environment: local, dev or prod")

	if err := fs.Parse(flagx.FilterArgs(args, flagx.Names(fs))); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *sessionTTL <= 0 {
		return fmt.Errorf("parse flags: session token ttl must be positive, got %d", *sessionTTL)
	}
	config.SessionTokenTTL = time.Duration(*sessionTTL) * time.Minute

	if config.MailTransport != MailTransportSMTP && config.MailTransport != MailTransportAMQP {
		return fmt.Errorf("unknown mail transport %q", config.MailTransport)
	}
	return nil
}
