// Package server wires and runs the Deliveroo auth server: the store and its
// migrations, the mail transport, the JSON API and the gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/dbx"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server/auth"
	"github.com/dmitrijs2005/deliveroo/internal/server/config"
	gs "github.com/dmitrijs2005/deliveroo/internal/server/grpc"
	"github.com/dmitrijs2005/deliveroo/internal/server/httpapi"
	"github.com/dmitrijs2005/deliveroo/internal/server/mail"
	"github.com/dmitrijs2005/deliveroo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/deliveroo/internal/server/services"
)

const (
	shutdownTimeout = 5 * time.Second
	requestTimeout  = 15 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []io.Closer
	auth    *services.AuthService
}

// OpenStore opens the database named by cfg and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, *repomanager.SQLRepositoryManager, error) {
	db, dialect, err := dbx.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return db, rm, nil
}

// NewTokenService builds the session token service over rm.
func NewTokenService(cfg *config.Config, db *sql.DB, rm *repomanager.SQLRepositoryManager) *auth.TokenService {
	return auth.NewTokenService([]byte(cfg.SecretKey), cfg.SessionTokenTTL, rm.RevokedTokens(db))
}

// NewMailTransport returns the transport selected by cfg.MailTransport. The
// returned closer may be nil.
func NewMailTransport(cfg *config.Config) (mail.Transport, io.Closer, error) {
	switch cfg.MailTransport {
	case config.MailTransportAMQP:
		t, err := mail.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case config.MailTransportSMTP, "":
		return mail.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// MailConfig projects the dispatcher settings out of cfg.
func MailConfig(cfg *config.Config) mail.Config {
	return mail.Config{
		Sender:               cfg.MailDefaultSender,
		FrontendURL:          cfg.FrontendURL,
		APIBaseURL:           cfg.APIBaseURL,
		Attempts:             cfg.MailSendAttempts,
		RetryPause:           cfg.MailRetryPause,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		ResetTokenTTL:        cfg.ResetTokenTTL,
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.Env, os.Stdout)

	db, rm, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "store ready", "dialect", rm.Dialect())

	transport, closer, err := NewMailTransport(c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mail transport: %w", err)
	}

	dispatcher := mail.NewDispatcher(MailConfig(c), transport, logger.With("module", "mail"))
	tokens := NewTokenService(c, db, rm)
	svc := services.NewAuthService(db, rm, tokens, dispatcher, c, logger.With("module", "auth"))

	app := &App{config: c, logger: logger, db: db, auth: svc}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.closers = append(app.closers, db)
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db, gs.DefaultProbeInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", logging.Err(err))
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.auth, httpapi.RouterConfig{
		AllowedOrigin:      app.config.FrontendURL,
		RateLimitPerMinute: app.config.RateLimitPerMinute,
		RequestTimeout:     requestTimeout,
	}, app.logger.With("module", "http"))

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", logging.Err(err))
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", logging.Err(err))
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or ctx is done, then
// releases the store and the mail transport.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Warn(context.Background(), "close", logging.Err(err))
		}
	}
	app.logger.Info(context.Background(), "App stopped")
}
