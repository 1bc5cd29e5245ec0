package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivezEndpoint(t *testing.T) {
	env := setupAuthServer(t)

	health, err := env.client.Livez(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)
}

func TestReadyzEndpoint(t *testing.T) {
	env := setupAuthServer(t)

	health, err := env.client.Readyz(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestJWKSEndpoint(t *testing.T) {
	env := setupAuthServer(t)

	jwks, err := env.client.JWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	assert.Equal(t, "OKP", key.Kty)
	assert.Equal(t, "Ed25519", key.Crv)
	assert.Equal(t, "EdDSA", key.Alg)
	assert.NotEmpty(t, key.Kid)
	assert.NotEmpty(t, key.X)
}
