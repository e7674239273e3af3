package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/deliveroo/internal/flagx"
	"github.com/dmitrijs2005/deliveroo/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations
// use timex.Duration so both "24h" and integer nanoseconds are accepted.
// Fields absent from the file leave the current values untouched.
type JsonConfig struct {
	EndpointAddrHTTP          string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC          string          `json:"endpoint_addr_grpc"`
	DatabaseDSN               string          `json:"database_dsn"`
	SecretKey                 string          `json:"secret_key"`
	SessionTokenTTL           *timex.Duration `json:"session_token_ttl"`
	VerificationTokenTTL      *timex.Duration `json:"verification_token_ttl"`
	ResetTokenTTL             *timex.Duration `json:"reset_token_ttl"`
	EnforceVerificationExpiry *bool           `json:"enforce_verification_expiry"`
	PasswordHashCost          int             `json:"password_hash_cost"`
	FrontendURL               string          `json:"frontend_url"`
	APIBaseURL                string          `json:"api_base_url"`
	MailTransport             string          `json:"mail_transport"`
	MailDefaultSender         string          `json:"mail_default_sender"`
	MailSendAttempts          int             `json:"mail_send_attempts"`
	MailRetryPause            *timex.Duration `json:"mail_retry_pause"`
	SMTPHost                  string          `json:"smtp_host"`
	SMTPPort                  int             `json:"smtp_port"`
	SMTPUsername              string          `json:"smtp_username"`
	SMTPPassword              string          `json:"smtp_password"`
	AMQPURL                   string          `json:"amqp_url"`
	AMQPQueue                 string          `json:"amqp_queue"`
	RateLimitPerMinute        int             `json:"rate_limit_per_minute"`
	Env                       string          `json:"env"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every field it sets into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.APIBaseURL, c.APIBaseURL)
	setString(&config.MailTransport, c.MailTransport)
	setString(&config.MailDefaultSender, c.MailDefaultSender)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.AMQPQueue, c.AMQPQueue)
	setString(&config.Env, c.Env)

	setInt(&config.PasswordHashCost, c.PasswordHashCost)
	setInt(&config.MailSendAttempts, c.MailSendAttempts)
	setInt(&config.SMTPPort, c.SMTPPort)
	setInt(&config.RateLimitPerMinute, c.RateLimitPerMinute)

	if c.SessionTokenTTL != nil {
		config.SessionTokenTTL = c.SessionTokenTTL.Duration
	}
	if c.VerificationTokenTTL != nil {
		config.VerificationTokenTTL = c.VerificationTokenTTL.Duration
	}
	if c.ResetTokenTTL != nil {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	if c.MailRetryPause != nil {
		config.MailRetryPause = c.MailRetryPause.Duration
	}
	if c.EnforceVerificationExpiry != nil {
		config.EnforceVerificationExpiry = *c.EnforceVerificationExpiry
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
