package jwtx_test

import (
	"testing"
	"time"

	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewEphemeralKeyManager(t *testing.T) {
	t.Run("requires issuer", func(t *testing.T) {
		_, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{})
		require.Error(t, err)
	})

	t.Run("defaults to three keys", func(t *testing.T) {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer})
		require.NoError(t, err)
		require.Equal(t, 3, km.NumSigners())
		require.True(t, km.IsReady())
		require.Len(t, km.KeySet.JWKS().Keys, 3)
	})

	t.Run("clamps key count", func(t *testing.T) {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, NumKeys: 25})
		require.NoError(t, err)
		require.Equal(t, 10, km.NumSigners())
	})

	t.Run("any signer verifies against the shared keyset", func(t *testing.T) {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:   exampleIssuer,
			Audience: []string{"api"},
			NumKeys:  5,
		})
		require.NoError(t, err)

		now := time.Now().UTC()
		seenKIDs := make(map[string]bool)
		for i := 0; i < 50; i++ {
			signer := km.GetSigner()
			require.NotNil(t, signer)
			seenKIDs[signer.KID()] = true

			token, err := signer.Sign(jwtx.NewRefreshClaims("acct-9", "rt-1", 4, time.Hour, exampleIssuer, []string{"api"}, now))
			require.NoError(t, err)

			claims, err := km.Verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, jwtx.TokenTypeRefresh, claims.TokenType)
			require.Equal(t, int64(4), claims.TokenVersion)
		}

		// 50 draws over 5 keys should hit more than one kid
		require.Greater(t, len(seenKIDs), 1)
	})
}
