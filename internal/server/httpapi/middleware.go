package httpapi

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server/auth"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error)
}

type sessionKey struct{}

// Session is what RequireSession attaches to the request context.
type Session struct {
	User   *models.User
	Claims *auth.Claims
	Token  string
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, common.BearerScheme+" ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireSession rejects requests without a valid, unrevoked session token
// for an existing user.
func RequireSession(a Authenticator, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get(common.AuthorizationHeaderName))
			if !ok {
				respondMessage(w, r, http.StatusUnauthorized, "Token is missing")
				return
			}

			user, claims, err := a.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, common.ErrorUnauthorized):
				respondMessage(w, r, http.StatusUnauthorized, "Token is invalid or expired")
				return
			case errors.Is(err, common.ErrorNotFound):
				respondMessage(w, r, http.StatusNotFound, "User not found")
				return
			default:
				logger.Error(r.Context(), "authenticate request", logging.Err(err),
					"request_id", middleware.GetReqID(r.Context()))
				respondMessage(w, r, http.StatusInternalServerError, "An error occurred during authentication")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, &Session{User: user, Claims: claims, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cors answers preflight requests and decorates responses for allowedOrigin.
// An empty allowedOrigin allows any origin.
func cors(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowedOrigin == "" || origin == allowedOrigin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				respondMessage(w, r, http.StatusOK, "CORS preflight success")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit caps requests per client IP per minute.
func rateLimit(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondMessage(w, r, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

// requestLogger logs one line per request through the service logger.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info(r.Context(), "request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// recoverer turns a handler panic into a logged 500 with the usual JSON body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func recoverer(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error(r.Context(), "handler panic",
					"panic", p,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)
				respondMessage(w, r, http.StatusInternalServerError, "Internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
