package middleware

import (
	"context"
	"net/http"
	"strings"

	"pricedesk-api/internal/model"
	"pricedesk-api/pkg/apierror"
)

// SessionKey is the key for storing session data in request context.
const SessionKey contextKey = "session_data"

// SessionValidator validates admin session tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) bool
	Session(ctx context.Context, token string) *model.SessionData
}

// NewAuthMiddleware creates a session-token middleware. The validator is
// passed via closure, no global state.
func NewAuthMiddleware(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Token")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or Authorization header."))
				return
			}

			if !sessions.ValidateSession(r.Context(), token) {
				writeError(w, apierror.Unauthorized("Invalid or expired session"))
				return
			}

			if data := sessions.Session(r.Context(), token); data != nil {
				ctx := context.WithValue(r.Context(), SessionKey, data)
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetSessionFromContext retrieves session data from request context.
func GetSessionFromContext(ctx context.Context) *model.SessionData {
	if data, ok := ctx.Value(SessionKey).(*model.SessionData); ok {
		return data
	}
	return nil
}
