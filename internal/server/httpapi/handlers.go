// Package httpapi exposes the auth workflows as a JSON API under /api/auth.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/common"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server/models"
	"github.com/dmitrijs2005/deliveroo/internal/server/services"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// AuthService is the workflow surface the handlers drive.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string)
	ConfirmPasswordReset(ctx context.Context, token, password, confirm string) error
	ResendVerification(ctx context.Context, email string) error
}

// Uniform answers of the anti-enumeration flows.
const (
	msgResetRequested     = "If your email is registered, you will receive a password reset link"
	msgVerificationResent = "If your email is registered, you will receive a verification link"
)

type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=80"`
	SecondName      string `json:"second_name" validate:"required,max=80"`
	Username        string `json:"username" validate:"required,max=80"`
	Email           string `json:"email" validate:"required,email,max=120"`
	Password        string `json:"password" validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

// ResetConfirmRequest leaves presence checks to the service so missing
// fields get their own message.
type ResetConfirmRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password" validate:"omitempty,password,max=72"`
	ConfirmPassword string `json:"confirm_password"`
}

type Handler struct {
	svc      AuthService
	validate *validator.Validate
	logger   logging.Logger
	timeout  time.Duration
}

// NewHandler builds the handlers. timeout bounds each workflow call; zero
// disables it.
func NewHandler(svc AuthService, logger logging.Logger, timeout time.Duration) *Handler {
	return &Handler{svc: svc, validate: newValidator(), logger: logger, timeout: timeout}
}

func (h *Handler) opLogger(r *http.Request, op string) logging.Logger {
	return h.logger.With("op", op, "request_id", middleware.GetReqID(r.Context()))
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

// decode reads a JSON body into v. An empty body leaves v zero.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bind decodes and validates; on failure it writes the 400 and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, log logging.Logger, v any) bool {
	if err := decode(r, v); err != nil {
		log.Info(r.Context(), "failed to decode request body", logging.Err(err))
		respondMessage(w, r, http.StatusBadRequest, "Failed to decode request")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		log.Info(r.Context(), "invalid request", logging.Err(err))
		respond(w, r, http.StatusBadRequest, Response{Message: "Validation failed", Errors: validationErrors(err)})
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Register"
	log := h.opLogger(r, op)

	var req RegisterRequest
	if !h.bind(w, r, log, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	user, err := h.svc.Register(ctx, services.RegisterInput{
		FirstName:       req.FirstName,
		SecondName:      req.SecondName,
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	switch {
	case err == nil:
		respond(w, r, http.StatusCreated, RegisterResponse{
			Message: "User registered. Check email to verify.",
			UserID:  user.ID,
		})
	case errors.Is(err, common.ErrPasswordMismatch):
		respondMessage(w, r, http.StatusBadRequest, "Passwords do not match")
	case errors.Is(err, common.ErrPasswordTooLong):
		respondMessage(w, r, http.StatusBadRequest, passwordTooLongMessage)
	case errors.Is(err, common.ErrEmailTaken):
		respondMessage(w, r, http.StatusConflict, "User already exists with this email")
	case errors.Is(err, common.ErrUserExists):
		respondMessage(w, r, http.StatusConflict, "Username or email already exists")
	case errors.Is(err, common.ErrServiceUnavailable):
		respondMessage(w, r, http.StatusServiceUnavailable, "Registration failed due to email service issue")
	default:
		log.Error(r.Context(), "register", logging.Err(err))
		respondMessage(w, r, http.StatusInternalServerError, "An error occurred during registration")
	}
}

// VerifyEmail accepts the token as a query parameter (GET, the emailed link)
// or in a JSON body (POST).
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.VerifyEmail"
	log := h.opLogger(r, op)

	var token string
	if r.Method == http.MethodGet {
		token = r.URL.Query().Get("token")
	} else {
		var req VerifyRequest
		if err := decode(r, &req); err != nil {
			respondMessage(w, r, http.StatusBadRequest, "Missing or invalid verification token")
			return
		}
		token = req.Token
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	err := h.svc.VerifyEmail(ctx, token)
	switch {
	case err == nil:
		respondMessage(w, r, http.StatusOK, "Email verified successfully")
	case errors.Is(err, common.ErrMissingToken):
		respondMessage(w, r, http.StatusBadRequest, "Missing or invalid verification token")
	case errors.Is(err, common.ErrInvalidToken):
		respondMessage(w, r, http.StatusBadRequest, "Invalid token")
	default:
		log.Error(r.Context(), "verify email", logging.Err(err))
		respondMessage(w, r, http.StatusInternalServerError, "An error occurred during email verification")
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Login"
	log := h.opLogger(r, op)

	var req LoginRequest
	if !h.bind(w, r, log, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.svc.Login(ctx, req.Email, req.Password)
	switch {
	case err == nil:
		respond(w, r, http.StatusOK, LoginResponse{
			Message:  "Login successful",
			Token:    res.Token,
			User:     userView(res.User),
			Redirect: res.Redirect,
		})
	case errors.Is(err, common.ErrAccountInactive):
		respondMessage(w, r, http.StatusUnauthorized, "Please verify your email before logging in")
	case errors.Is(err, common.ErrorUnauthorized):
		respondMessage(w, r, http.StatusUnauthorized, "Invalid email or password")
	default:
		log.Error(r.Context(), "login", logging.Err(err))
		respondMessage(w, r, http.StatusInternalServerError, "An error occurred during login")
	}
}

// Logout runs behind RequireSession.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.Logout"
	log := h.opLogger(r, op)

	sess, ok := SessionFrom(r.Context())
	if !ok {
		respondMessage(w, r, http.StatusUnauthorized, "Token is missing")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	err := h.svc.Logout(ctx, sess.Token)
	switch {
	case err == nil:
		log.Info(r.Context(), "user logged out", "user_id", sess.User.ID)
		respondMessage(w, r, http.StatusOK, "Successfully logged out")
	case errors.Is(err, common.ErrorUnauthorized):
		respondMessage(w, r, http.StatusUnauthorized, "Token is invalid or expired")
	default:
		log.Error(r.Context(), "logout", logging.Err(err))
		respondMessage(w, r, http.StatusInternalServerError, "An error occurred during logout")
	}
}

// RequestPasswordReset answers identically for every outcome after the
// request itself validates.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.RequestPasswordReset"
	log := h.opLogger(r, op)

	var req EmailRequest
	if !h.bind(w, r, log, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	h.svc.RequestPasswordReset(ctx, req.Email)
	respondMessage(w, r, http.StatusOK, msgResetRequested)
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.ConfirmPasswordReset"
	log := h.opLogger(r, op)

	var req ResetConfirmRequest
	if !h.bind(w, r, log, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	err := h.svc.ConfirmPasswordReset(ctx, req.Token, req.Password, req.ConfirmPassword)
	switch {
	case err == nil:
		respondMessage(w, r, http.StatusOK, "Password updated successfully")
	case errors.Is(err, common.ErrMissingResetFields):
		respondMessage(w, r, http.StatusBadRequest, "Token, password, and confirm password are required")
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		respondMessage(w, r, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, common.ErrPasswordMismatch):
		respondMessage(w, r, http.StatusBadRequest, "Passwords do not match")
	case errors.Is(err, common.ErrPasswordTooLong):
		respondMessage(w, r, http.StatusBadRequest, passwordTooLongMessage)
	default:
		log.Error(r.Context(), "confirm password reset", logging.Err(err))
		respondMessage(w, r, http.StatusInternalServerError, "An error occurred during password reset")
	}
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.ResendVerification"
	log := h.opLogger(r, op)

	var req EmailRequest
	if !h.bind(w, r, log, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.svc.ResendVerification(ctx, req.Email); errors.Is(err, common.ErrAlreadyVerified) {
		respondMessage(w, r, http.StatusBadRequest, "This account is already verified")
		return
	}
	respondMessage(w, r, http.StatusOK, msgVerificationResent)
}

// CurrentUser runs behind RequireSession.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		respondMessage(w, r, http.StatusUnauthorized, "Token is missing")
		return
	}
	respond(w, r, http.StatusOK, CurrentUserResponse{User: userDetail(sess.User)})
}

func userView(u *models.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin}
}

func userDetail(u *models.User) UserDetail {
	d := UserDetail{
		UserView:   userView(u),
		FirstName:  u.FirstName,
		SecondName: u.SecondName,
		IsActive:   u.IsActive,
	}
	if !u.CreatedAt.IsZero() {
		d.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return d
}
