package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/expopass/expopass-auth/pkg/authn"
	"github.com/expopass/expopass-auth/pkg/ratelimit"
	"github.com/expopass/expopass-auth/pkg/token"
)

// Handle handles HTTP requests for authentication
type Handle struct {
	service      *authn.Service
	cookieSetter *token.CookieSetter
}

// NewHandle creates a new authentication handler
func NewHandle(service *authn.Service, cookieSetter *token.CookieSetter) *Handle {
	return &Handle{
		service:      service,
		cookieSetter: cookieSetter,
	}
}

// Routes registers the public authentication routes
func (h *Handle) Routes(r chi.Router) {
	r.Post("/login", h.PostLogin)
}

// AuthenticatedRoutes registers routes that require a verified token.
// Mount these under a jwtauth verifier group.
func (h *Handle) AuthenticatedRoutes(r chi.Router) {
	r.Post("/logout", h.PostLogout)
	r.Post("/logout-all", h.PostLogoutAll)
}

// PostLoginRequest is the JSON body for POST /login
type PostLoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// PostLoginResponse is the JSON body for a successful login
type PostLoginResponse struct {
	User         authn.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// ErrorResponse is the JSON body for a failed request
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PostLogin handles POST /login
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var data PostLoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeError(w, http.StatusBadRequest, &authn.Error{
			Type:    "bad_request",
			Message: "Unable to parse request body",
		})
		return
	}

	result := h.service.Login(r.Context(), authn.LoginRequest{
		Email:      data.Email,
		Password:   data.Password,
		RememberMe: data.RememberMe,
		IPAddress:  ratelimit.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})

	if !result.Success {
		writeError(w, statusForError(result.ErrorResponse), result.ErrorResponse)
		return
	}

	h.cookieSetter.SetTokenCookies(w, result.Tokens)

	resp := PostLoginResponse{
		User:        result.User,
		AccessToken: result.Tokens.AccessToken.Token,
		ExpiresAt:   result.Tokens.AccessToken.Expiry,
	}
	if result.Tokens.RefreshToken != nil {
		resp.RefreshToken = result.Tokens.RefreshToken.Token
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PostLogout handles POST /logout
func (h *Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if jti, ok := claims["jti"].(string); ok && jti != "" {
		if err := h.service.Logout(r.Context(), jti); err != nil {
			slog.Error("Failed to log out session", "err", err)
			http.Error(w, "Failed to log out", http.StatusInternalServerError)
			return
		}
	}

	h.cookieSetter.ClearTokenCookies(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

// PostLogoutAll handles POST /logout-all
func (h *Handle) PostLogoutAll(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		slog.Error("Failed to log out all sessions", "err", err, "user_id", userID)
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	h.cookieSetter.ClearTokenCookies(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out everywhere"})
}

func writeError(w http.ResponseWriter, status int, e *authn.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Type: e.Type, Message: e.Message})
}

func statusForError(e *authn.Error) int {
	switch e.Type {
	case authn.ErrorTypeInvalidCredentials:
		return http.StatusUnauthorized
	case authn.ErrorTypeAccountBlocked, authn.ErrorTypeAccountNotVerified:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
