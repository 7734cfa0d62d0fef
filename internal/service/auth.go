package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"pricedesk-api/internal/cache"
	"pricedesk-api/internal/model"
)

const (
	// SessionTokenPrefix is the prefix for all issued session tokens.
	SessionTokenPrefix = "pds_"

	// sessionKeyPrefix namespaces session entries in the cache.
	sessionKeyPrefix = "session:"
)

var (
	// ErrAuthenticationFailed indicates the upstream identity provider
	// rejected a sign-in or refresh.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidCredentials indicates a login that failed the local
	// allow-list check.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// signInResponse is the upstream identity provider's token payload.
type signInResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	APIKey       string `json:"api_key"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// AuthManager performs sign-in/refresh against the upstream identity provider
// and owns the local session table. Identity calls use a dedicated plain HTTP
// client: they must not carry a possibly-stale bearer token.
type AuthManager struct {
	identityURL string
	tokens      *TokenStore
	sessions    cache.Cache
	allowList   map[string]string
	httpc       *http.Client
}

// NewAuthManager creates an auth manager.
func NewAuthManager(identityURL string, timeout time.Duration, tokens *TokenStore, sessions cache.Cache, allowList map[string]string) *AuthManager {
	return &AuthManager{
		identityURL: identityURL,
		tokens:      tokens,
		sessions:    sessions,
		allowList:   allowList,
		httpc:       &http.Client{Timeout: timeout},
	}
}

// postIdentity posts a JSON body to an identity endpoint and decodes the
// token payload. Non-2xx responses come back as errors carrying the body.
func (m *AuthManager) postIdentity(ctx context.Context, path string, body interface{}) (*signInResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.identityURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("identity endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode token payload: %w", err)
	}
	return &out, nil
}

// SignIn posts the stored service credentials to the identity provider and
// writes the resulting token fields to the token store. A failed sign-in
// does NOT clear existing tokens: a still-valid session survives a failed
// re-auth unless the caller explicitly clears it.
func (m *AuthManager) SignIn(ctx context.Context) error {
	username, password := m.tokens.Credentials()

	resp, err := m.postIdentity(ctx, "/auth/sign-in", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	m.tokens.Update(model.TokenUpdate{
		AccessToken:  &resp.AccessToken,
		RefreshToken: &resp.RefreshToken,
		APIKey:       &resp.APIKey,
		ExpiresAt:    &expiresAt,
	})

	log.Printf("[AuthManager] Signed in, token expires at %s", expiresAt.Format(time.RFC3339))
	return nil
}

// RefreshToken exchanges the stored refresh token for a fresh access token.
// It returns false (not an error) on any failure so the caller can fall back
// to a full SignIn; failure clears the entire token store.
func (m *AuthManager) RefreshToken(ctx context.Context) bool {
	snap := m.tokens.Snapshot()
	if snap.RefreshToken == "" {
		log.Printf("[AuthManager] No refresh token available")
		return false
	}

	resp, err := m.postIdentity(ctx, "/auth/refresh", map[string]string{
		"refresh_token": snap.RefreshToken,
	})
	if err != nil {
		log.Printf("[AuthManager] Token refresh failed, clearing token store: %v", err)
		m.tokens.Clear()
		return false
	}

	// The refresh endpoint may omit a new refresh token; keep the old one.
	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = snap.RefreshToken
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	m.tokens.Update(model.TokenUpdate{
		AccessToken:  &resp.AccessToken,
		RefreshToken: &refreshToken,
		ExpiresAt:    &expiresAt,
	})

	log.Printf("[AuthManager] Token refreshed, expires at %s", expiresAt.Format(time.RFC3339))
	return true
}

// Login validates the pair against the local allow-list and issues an opaque
// session token. The upstream sign-in runs first regardless of local
// validity: the user-facing login is decoupled from the upstream service
// credential, and the service token gets refreshed either way.
func (m *AuthManager) Login(ctx context.Context, username, password string) (string, error) {
	signInErr := m.SignIn(ctx)
	if signInErr != nil {
		log.Printf("[AuthManager] Upstream sign-in during login failed: %v", signInErr)
	}

	expected, ok := m.allowList[username]
	if !ok || expected != password {
		return "", ErrInvalidCredentials
	}
	if signInErr != nil {
		return "", signInErr
	}

	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := SessionTokenPrefix + hex.EncodeToString(tokenBytes)

	data, err := json.Marshal(model.SessionData{
		Username:  username,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize session data: %w", err)
	}

	// Sessions never expire on their own; they live until Logout.
	if err := m.sessions.Set(ctx, sessionKeyPrefix+token, data, 0); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	log.Printf("[AuthManager] Issued session for user %s", username)
	return token, nil
}

// Logout removes the session token. Removing an unknown token is not an error.
func (m *AuthManager) Logout(ctx context.Context, token string) error {
	return m.sessions.Delete(ctx, sessionKeyPrefix+token)
}

// ValidateSession reports whether the session token exists.
func (m *AuthManager) ValidateSession(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	exists, err := m.sessions.Exists(ctx, sessionKeyPrefix+token)
	if err != nil {
		log.Printf("[AuthManager] Session lookup failed: %v", err)
		return false
	}
	return exists
}

// Session returns the stored session data for a token, or nil.
func (m *AuthManager) Session(ctx context.Context, token string) *model.SessionData {
	raw, err := m.sessions.Get(ctx, sessionKeyPrefix+token)
	if err != nil {
		return nil
	}
	var data model.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return &data
}

// SignOut clears the upstream token store. Local sessions are untouched.
func (m *AuthManager) SignOut() {
	m.tokens.Clear()
	log.Printf("[AuthManager] Upstream tokens cleared")
}

// IsAuthenticated reports whether the upstream token store holds a valid token.
func (m *AuthManager) IsAuthenticated() bool {
	return m.tokens.IsAuthenticated()
}
