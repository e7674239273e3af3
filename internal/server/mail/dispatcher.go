package mail

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/go-playground/validator/v10"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const (
	verificationSubject  = "Verify Your Deliveroo Account"
	passwordResetSubject = "Reset Your Deliveroo Password"

	verificationPath  = "/api/auth/users/verify"
	passwordResetPath = "/reset-password"
)

// Config carries the sender address, the link bases and the retry policy.
type Config struct {
	Sender               string
	FrontendURL          string
	APIBaseURL           string
	Attempts             int
	RetryPause           time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

// Dispatcher sends the verification and password reset emails. Every
// failure resolves to false; nothing is returned past it as an error.
type Dispatcher struct {
	cfg       Config
	transport Transport
	validate  *validator.Validate
	logger    logging.Logger
}

func NewDispatcher(cfg Config, transport Transport, logger logging.Logger) *Dispatcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 2
	}
	if cfg.VerificationTokenTTL <= 0 {
		cfg.VerificationTokenTTL = common.VerificationTokenTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = common.ResetTokenTTL
	}
	return &Dispatcher{cfg: cfg, transport: transport, validate: validator.New(), logger: logger}
}

type linkData struct {
	URL      string
	ValidFor string
}

// SendVerificationEmail mails the account verification link for token.
func (d *Dispatcher) SendVerificationEmail(ctx context.Context, to, token string) bool {
	return d.send(ctx, to, verificationSubject, "verification.html", d.cfg.APIBaseURL, verificationPath, token, d.cfg.VerificationTokenTTL)
}

// SendPasswordResetEmail mails the frontend password reset link for token.
func (d *Dispatcher) SendPasswordResetEmail(ctx context.Context, to, token string) bool {
	return d.send(ctx, to, passwordResetSubject, "password_reset.html", d.cfg.FrontendURL, passwordResetPath, token, d.cfg.ResetTokenTTL)
}

func (d *Dispatcher) send(ctx context.Context, to, subject, tmpl, base, path, token string, validFor time.Duration) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error(ctx, "critical email failure", "panic", p)
			ok = false
		}
	}()

	if err := d.validate.Var(to, "required,email"); err != nil {
		d.logger.Warn(ctx, "invalid email format detected (redacted)")
		return false
	}

	if d.cfg.Sender == "" {
		d.logger.Error(ctx, "missing mail default sender in config")
		return false
	}
	// required for both templates
	if d.cfg.FrontendURL == "" {
		d.logger.Error(ctx, "missing frontend url in config")
		return false
	}
	if base == "" {
		d.logger.Error(ctx, "missing link base url in config", "template", tmpl)
		return false
	}

	link := strings.TrimRight(base, "/") + path + "?token=" + url.QueryEscape(token)

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, linkData{URL: link, ValidFor: humanize(validFor)}); err != nil {
		d.logger.Error(ctx, "render email", "template", tmpl, logging.Err(err))
		return false
	}

	msg := Message{From: d.cfg.Sender, To: to, Subject: subject, HTML: body.String()}
	if err := sendWithRetry(ctx, d.transport, msg, d.cfg.Attempts, d.cfg.RetryPause); err != nil {
		d.logger.Error(ctx, "email failed", "to", redact(to), "attempts", d.cfg.Attempts, logging.Err(err))
		return false
	}

	d.logger.Info(ctx, "email sent", "to", redact(to), "subject", subject)
	return true
}

func humanize(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	default:
		return d.String()
	}
}
