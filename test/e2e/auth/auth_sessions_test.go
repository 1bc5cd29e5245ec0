package auth_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/pkg/authsdk"
)

func TestSessionListing(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	first, err := env.client.SignIn(t.Context(), "alice", testPassword, "laptop")
	require.NoError(t, err)
	_, err = env.client.SignIn(t.Context(), "alice", testPassword, "phone")
	require.NoError(t, err)

	sessions, err := first.Session.Sessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "laptop", sessions[0].DeviceName)
	assert.Equal(t, "phone", sessions[1].DeviceName)
}

func TestSessionRevoke(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	laptop, err := env.client.SignIn(t.Context(), "alice", testPassword, "laptop")
	require.NoError(t, err)
	phone, err := env.client.SignIn(t.Context(), "alice", testPassword, "phone")
	require.NoError(t, err)

	sessions, err := laptop.Session.Sessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	phoneRefresh := phone.Session.RefreshToken()
	require.NoError(t, laptop.Session.RevokeSession(t.Context(), sessions[1].ID))

	// The revoked device's refresh token dies with its session.
	_, err = env.client.RefreshTokens(t.Context(), phoneRefresh)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidToken))

	sessions, err = laptop.Session.Sessions(t.Context())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionRevokeUnknownID(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")
	session := env.signIn(t, "alice")

	err := session.RevokeSession(t.Context(), "01JXAMPLE0000000000000000")
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeSessionNotFound))
}

func TestSessionRevokeOthers(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	var keeper *authsdk.Session
	for i := 0; i < 3; i++ {
		result, err := env.client.SignIn(t.Context(), "alice", testPassword, fmt.Sprintf("device-%d", i))
		require.NoError(t, err)
		keeper = result.Session
	}

	sessions, err := keeper.Sessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	keeperID := sessions[2].ID

	// The surviving session is the caller's own, derived from the token.
	require.NoError(t, keeper.RevokeOtherSessions(t.Context()))

	sessions, err = keeper.Sessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, keeperID, sessions[0].ID)
}

func TestSessionCapEvictsOldest(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	oldest := env.signIn(t, "alice")
	oldestRefresh := oldest.RefreshToken()

	var last *authsdk.Session
	for i := 1; i <= domain.MaxSessionsPerAccount; i++ {
		result, err := env.client.SignIn(t.Context(), "alice", testPassword, fmt.Sprintf("device-%d", i))
		require.NoError(t, err)
		last = result.Session
	}

	sessions, err := last.Sessions(t.Context())
	require.NoError(t, err)
	assert.Len(t, sessions, domain.MaxSessionsPerAccount)

	// The first device was pushed out, so its refresh token is gone.
	_, err = env.client.RefreshTokens(t.Context(), oldestRefresh)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidToken))
}

func TestSignOutEverywhere(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	laptop := env.signIn(t, "alice")
	phone := env.signIn(t, "alice")

	phoneRefresh := phone.RefreshToken()
	require.NoError(t, laptop.SignOutEverywhere(t.Context()))

	_, err := env.client.RefreshTokens(t.Context(), phoneRefresh)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidToken))

	// A fresh sign-in works fine after the purge.
	session := env.signIn(t, "alice")
	_, err = session.Me(t.Context())
	require.NoError(t, err)
}
