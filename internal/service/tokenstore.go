package service

import (
	"sync"
	"time"

	"pricedesk-api/internal/model"
)

// TokenStore holds the current upstream bearer token. It is a single-writer,
// many-reader register: the upstream client reads a snapshot per request
// while the auth manager rotates fields under the write lock. It also keeps
// the upstream service credentials, which survive Clear.
type TokenStore struct {
	mu       sync.RWMutex
	record   model.TokenRecord
	username string
	password string
}

// NewTokenStore creates a token store holding the given service credentials.
func NewTokenStore(username, password string) *TokenStore {
	return &TokenStore{username: username, password: password}
}

// Snapshot returns a copy of the current token record, never the live one.
func (s *TokenStore) Snapshot() model.TokenRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Update merges the non-nil fields of the partial into the record. Fields
// absent from the partial are left untouched.
func (s *TokenStore) Update(partial model.TokenUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partial.AccessToken != nil {
		s.record.AccessToken = *partial.AccessToken
	}
	if partial.RefreshToken != nil {
		s.record.RefreshToken = *partial.RefreshToken
	}
	if partial.APIKey != nil {
		s.record.APIKey = *partial.APIKey
	}
	if partial.ExpiresAt != nil {
		s.record.ExpiresAt = *partial.ExpiresAt
	}
}

// Clear resets all token fields. The stored service credentials are kept.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = model.TokenRecord{}
}

// IsAuthenticated reports whether a non-expired access token is held.
func (s *TokenStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.AccessToken != "" &&
		!s.record.ExpiresAt.IsZero() &&
		s.record.ExpiresAt.After(time.Now())
}

// Credentials returns the upstream service credential pair.
func (s *TokenStore) Credentials() (username, password string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username, s.password
}
