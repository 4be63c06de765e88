package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlinsight/internal/core"
	"sqlinsight/internal/data"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	store, err := data.InitDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewAuthService(data.NewUserRepo(store), data.NewApiKeyRepo(store))
}

func TestCreateUserMintsApiKey(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	user, key, err := auth.CreateUser(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Len(t, key, 64)

	apiKey, err := auth.VerifyApiKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, apiKey.UserID)
	assert.Equal(t, key[:8], apiKey.KeyPrefix)

	_, err = auth.VerifyApiKey(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidApiKey)
}

func TestCreateUserConflict(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	_, _, err := auth.CreateUser(ctx, "alice", "pw")
	require.NoError(t, err)

	_, _, err = auth.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestAuthenticateAndResetPassword(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	_, _, err := auth.CreateUser(ctx, "alice", "old password")
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, "alice", "old password")
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, auth.ResetPassword(ctx, "alice", "new password"))
	_, err = auth.Authenticate(ctx, "alice", "old password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "alice", "new password")
	assert.NoError(t, err)

	assert.ErrorIs(t, auth.ResetPassword(ctx, "bob", "x"), core.ErrNotFound)
}

func TestRevokeApiKey(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	alice, first, err := auth.CreateUser(ctx, "alice", "pw")
	require.NoError(t, err)
	bob, _, err := auth.CreateUser(ctx, "bob", "pw")
	require.NoError(t, err)

	second, key, err := auth.GenerateApiKey(ctx, alice.ID, "ci")
	require.NoError(t, err)

	keys, err := auth.ListApiKeys(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "ci", keys[0].Description)

	assert.ErrorIs(t, auth.RevokeApiKey(ctx, bob.ID, key.ID), core.ErrNotFound, "keys are owner scoped")
	require.NoError(t, auth.RevokeApiKey(ctx, alice.ID, key.ID))
	assert.ErrorIs(t, auth.RevokeApiKey(ctx, alice.ID, key.ID), core.ErrNotFound)

	_, err = auth.VerifyApiKey(ctx, second)
	assert.ErrorIs(t, err, ErrInvalidApiKey)
	_, err = auth.VerifyApiKey(ctx, first)
	assert.NoError(t, err)
}
