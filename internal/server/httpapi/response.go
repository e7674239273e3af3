package httpapi

import (
	"net/http"

	"github.com/go-chi/render"
)

// Response is the envelope of every JSON answer. Errors is only present on
// validation failures and maps a request field to its message.
type Response struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// UserView is the public projection of a user returned on login.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// UserDetail is the projection returned by the current user endpoint.
type UserDetail struct {
	UserView
	FirstName  string `json:"first_name"`
	SecondName string `json:"second_name"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

// RegisterResponse answers a successful registration.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// LoginResponse answers a successful login.
type LoginResponse struct {
	Message  string   `json:"message"`
	Token    string   `json:"token"`
	User     UserView `json:"user"`
	Redirect string   `json:"redirect"`
}

// CurrentUserResponse answers GET /api/auth/user.
type CurrentUserResponse struct {
	User UserDetail `json:"user"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respond(w, r, status, Response{Message: msg})
}
