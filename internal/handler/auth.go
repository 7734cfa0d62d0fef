package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pricedesk-api/internal/service"
	"pricedesk-api/pkg/apierror"
	"pricedesk-api/pkg/response"
)

// AuthHandler handles admin session and upstream auth requests.
type AuthHandler struct {
	auth *service.AuthManager
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthManager) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the response for login.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Username == "" || req.Password == "" {
		response.Error(w, apierror.BadRequest("username and password are required"))
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, apierror.Unauthorized("invalid credentials"))
			return
		}
		if errors.Is(err, service.ErrAuthenticationFailed) {
			response.Error(w, apierror.Unauthorized("upstream authentication failed"))
			return
		}
		response.Error(w, apierror.InternalError("login failed"))
		return
	}

	response.OK(w, LoginResponse{Token: token})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to log out"))
		return
	}

	response.OK(w, map[string]string{"status": "logged out"})
}

// StatusRequest represents the request body for session status checks.
type StatusRequest struct {
	SessionToken string `json:"sessionToken"`
}

// Status handles POST /auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	valid := req.SessionToken != "" && h.auth.ValidateSession(r.Context(), req.SessionToken)
	response.OK(w, map[string]bool{"isAuthenticated": valid})
}

// SignOut handles POST /auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.auth.SignOut()
	response.OK(w, map[string]string{"status": "signed out"})
}
