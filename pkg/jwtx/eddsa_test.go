package jwtx_test

import (
	"testing"
	"time"

	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestEdDSASignAndVerify(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	kid := "test-key-eddsa"

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, kid, signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims("acct-456", "", "user", 2, 5*time.Minute, exampleIssuer, []string{"api"}, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	jwks := keyset.JWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
	require.NotEmpty(t, jwks.Keys[0].X)

	verifier := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"api"})

	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acct-456", got.Subject)
	require.Equal(t, jwtx.TokenTypeAccess, got.TokenType)
	require.Equal(t, int64(2), got.TokenVersion)
	require.Equal(t, "user", got.Role)
}

func TestEdDSAVerifyRejections(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("kid-a", pemKey)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))
	verifier := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"api"})

	now := time.Now().UTC()

	t.Run("unknown kid", func(t *testing.T) {
		otherPEM, err := cryptox.GenerateEd25519Key()
		require.NoError(t, err)
		other, err := jwtx.NewSignerEdDSA("kid-b", otherPEM)
		require.NoError(t, err)

		token, err := other.Sign(jwtx.NewAccessClaims("acct-1", "", "user", 1, time.Minute, exampleIssuer, []string{"api"}, now))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("acct-1", "", "user", 1, time.Minute, exampleIssuer, []string{"api"}, now))
		require.NoError(t, err)

		_, err = verifier.Verify(token[:len(token)-4] + "AAAA")
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("acct-1", "", "user", 1, time.Minute, "someone-else", []string{"api"}, now))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("acct-1", "", "user", 1, time.Minute, exampleIssuer, []string{"billing"}, now))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("expired under pinned clock", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewAccessClaims("acct-1", "", "user", 1, time.Minute, exampleIssuer, []string{"api"}, now))
		require.NoError(t, err)

		late := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"api"})
		late.TimeFunc = func() time.Time { return now.Add(2 * time.Minute) }

		_, err = late.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := verifier.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
