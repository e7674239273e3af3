package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// RouterConfig tunes the cross-cutting middleware.
type RouterConfig struct {
	// AllowedOrigin is the CORS origin; empty allows any.
	AllowedOrigin string
	// RateLimitPerMinute caps requests per client IP; zero disables it.
	RateLimitPerMinute int
	// RequestTimeout bounds each workflow call; zero disables it.
	RequestTimeout time.Duration
}

// NewRouter mounts the auth API under /api/auth.
func NewRouter(svc AuthService, cfg RouterConfig, logger logging.Logger) http.Handler {
	h := NewHandler(svc, logger, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(cors(cfg.AllowedOrigin))

	r.Route("/api/auth", func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(rateLimit(cfg.RateLimitPerMinute))
		}

		r.Post("/users", h.Register)
		r.Get("/users/verify", h.VerifyEmail)
		r.Post("/users/verify", h.VerifyEmail)
		r.Post("/users/resend-verification", h.ResendVerification)
		r.Post("/sessions", h.Login)
		r.Post("/password-reset", h.RequestPasswordReset)
		r.Post("/password-reset/confirm", h.ConfirmPasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(svc, logger))
			r.Delete("/sessions", h.Logout)
			r.Get("/user", h.CurrentUser)
		})
	})

	return r
}
