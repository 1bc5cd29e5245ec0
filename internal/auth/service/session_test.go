package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/domain"
)

func TestSessionCapEvictsOldest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	pairs := make([]*domain.TokenPair, 0, domain.MaxSessionsPerAccount+1)
	for i := 0; i < domain.MaxSessionsPerAccount+1; i++ {
		pair, err := env.tokens.IssuePair(ctx, account, fmt.Sprintf("device-%d", i))
		require.NoError(t, err)
		pairs = append(pairs, pair)
		env.advance(time.Second)
	}

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, sessions, domain.MaxSessionsPerAccount)

	// The first device was evicted to make room.
	for _, s := range sessions {
		require.NotEqual(t, "device-0", s.DeviceName)
	}

	// Its tokens died with it.
	_, err = env.tokens.Refresh(ctx, pairs[0].RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = env.tokens.ValidateAccessToken(ctx, pairs[0].AccessToken)
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	// The survivors are untouched.
	_, err = env.tokens.ValidateAccessToken(ctx, pairs[1].AccessToken)
	require.NoError(t, err)
}

func TestSessionListIsOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	for _, device := range []string{"first", "second", "third"} {
		_, err := env.tokens.IssuePair(ctx, account, device)
		require.NoError(t, err)
		env.advance(time.Second)
	}

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, "first", sessions[0].DeviceName)
	require.Equal(t, "third", sessions[2].DeviceName)
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	pair, err := env.tokens.IssuePair(ctx, account, "laptop")
	require.NoError(t, err)
	env.advance(time.Second)
	keep, err := env.tokens.IssuePair(ctx, account, "phone")
	require.NoError(t, err)

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, env.sessions.Revoke(ctx, account.ID, sessions[0].ID))

	remaining, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "phone", remaining[0].DeviceName)

	// The revoked session's tokens stop working immediately.
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = env.tokens.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	_, err = env.tokens.ValidateAccessToken(ctx, keep.AccessToken)
	require.NoError(t, err)
}

func TestRevokeSessionRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createAccount(t, "alice", "alice@example.com")
	bob := env.createAccount(t, "bob", "bob@example.com")

	_, err := env.tokens.IssuePair(ctx, alice, "laptop")
	require.NoError(t, err)

	sessions, err := env.sessions.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.ErrorIs(t, env.sessions.Revoke(ctx, bob.ID, sessions[0].ID), ErrSessionNotFound)
}

func TestRevokeOthersKeepsCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	for _, device := range []string{"laptop", "phone"} {
		_, err := env.tokens.IssuePair(ctx, account, device)
		require.NoError(t, err)
		env.advance(time.Second)
	}
	current, err := env.tokens.IssuePair(ctx, account, "tablet")
	require.NoError(t, err)

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, "tablet", sessions[2].DeviceName)

	// The caller is recognized by the access token id bound to its
	// session row, not by anything client-supplied.
	claims, err := env.tokens.ValidateAccessToken(ctx, current.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.sessions.RevokeOthers(ctx, account.ID, claims.ID))

	remaining, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, sessions[2].ID, remaining[0].ID)

	_, err = env.tokens.ValidateAccessToken(ctx, current.AccessToken)
	require.NoError(t, err)
}
