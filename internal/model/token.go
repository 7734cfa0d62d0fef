package model

import "time"

// TokenRecord holds the current upstream bearer token state.
// A zero ExpiresAt means no expiry is known.
type TokenRecord struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	APIKey       string    `json:"api_key,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// TokenUpdate is a partial token update. Nil fields are left untouched.
type TokenUpdate struct {
	AccessToken  *string
	RefreshToken *string
	APIKey       *string
	ExpiresAt    *time.Time
}

// SessionData is the payload stored against an issued session token.
type SessionData struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
