package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/notify"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/rs/zerolog/log"
)

// Mailer sends the account mails that are not tied to a reminder.
type Mailer interface {
	SendWelcome(ctx context.Context, to notify.Recipient) error
	SendTest(ctx context.Context, to notify.Recipient) error
}

// UserHandler handles signup, login and the current-user lookup.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  *auth.TokenIssuer
	mailer  Mailer
	secure  bool
}

// NewUserHandler creates a new UserHandler. mailer may be nil; secureCookie sets the
// cookie's Secure flag.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenIssuer, mailer Mailer, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, mailer: mailer, secure: secureCookie}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupPayload defines the structure for registration requests.
type SignupPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles new user registration.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.FullName, payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		writeError(w, err, "register user")
		return
	}

	if h.mailer != nil {
		to := notify.Recipient{UserID: user.ID, Address: user.Email, Name: user.FullName}
		// The welcome mail must not hold up or fail the signup.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.mailer.SendWelcome(ctx, to); err != nil {
				log.Warn().Err(err).Str("user_id", to.UserID).Msg("Failed to send welcome email")
			}
		}()
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, err, "authenticate")
		return
	}

	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  time.Now().Add(h.tokens.TTL()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Logout clears the session cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	w.WriteHeader(http.StatusNoContent)
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("User from token not found")
		writeError(w, err, "load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
