package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricedesk-api/internal/model"
)

func strPtr(s string) *string { return &s }

func TestTokenStorePartialUpdate(t *testing.T) {
	store := NewTokenStore("svc", "secret")

	expires := time.Now().Add(time.Hour)
	store.Update(model.TokenUpdate{
		AccessToken:  strPtr("access-1"),
		RefreshToken: strPtr("refresh-1"),
		APIKey:       strPtr("key-1"),
		ExpiresAt:    &expires,
	})

	// A partial update touches only the provided fields.
	store.Update(model.TokenUpdate{AccessToken: strPtr("access-2")})

	snap := store.Snapshot()
	require.Equal(t, "access-2", snap.AccessToken)
	require.Equal(t, "refresh-1", snap.RefreshToken)
	require.Equal(t, "key-1", snap.APIKey)
	require.True(t, expires.Equal(snap.ExpiresAt))
}

func TestTokenStoreSnapshotIsCopy(t *testing.T) {
	store := NewTokenStore("svc", "secret")
	store.Update(model.TokenUpdate{AccessToken: strPtr("a")})

	snap := store.Snapshot()
	snap.AccessToken = "mutated"

	require.Equal(t, "a", store.Snapshot().AccessToken)
}

func TestTokenStoreClearKeepsCredentials(t *testing.T) {
	store := NewTokenStore("svc", "secret")
	expires := time.Now().Add(time.Hour)
	store.Update(model.TokenUpdate{
		AccessToken: strPtr("access"),
		ExpiresAt:   &expires,
	})
	require.True(t, store.IsAuthenticated())

	store.Clear()

	require.False(t, store.IsAuthenticated())
	require.Equal(t, model.TokenRecord{}, store.Snapshot())

	user, pass := store.Credentials()
	require.Equal(t, "svc", user)
	require.Equal(t, "secret", pass)
}

func TestTokenStoreIsAuthenticated(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		store := NewTokenStore("u", "p")
		require.False(t, store.IsAuthenticated())
	})

	t.Run("token without expiry", func(t *testing.T) {
		store := NewTokenStore("u", "p")
		store.Update(model.TokenUpdate{AccessToken: strPtr("a")})
		require.False(t, store.IsAuthenticated())
	})

	t.Run("expired token", func(t *testing.T) {
		store := NewTokenStore("u", "p")
		past := time.Now().Add(-time.Minute)
		store.Update(model.TokenUpdate{AccessToken: strPtr("a"), ExpiresAt: &past})
		require.False(t, store.IsAuthenticated())
	})

	t.Run("valid token", func(t *testing.T) {
		store := NewTokenStore("u", "p")
		future := time.Now().Add(time.Minute)
		store.Update(model.TokenUpdate{AccessToken: strPtr("a"), ExpiresAt: &future})
		require.True(t, store.IsAuthenticated())
	})
}
