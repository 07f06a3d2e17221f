package usecase

import (
	"errors"
	"testing"

	"recordproof/internal/domain"
	cryptoinfra "recordproof/internal/infra/crypto"
	"recordproof/internal/infra/keys/pemfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticity_ProcessThenVerify(t *testing.T) {
	auth := newTestAuthenticity(t)

	digest, sig, err := auth.Process("Test@Example.com ")
	require.NoError(t, err)
	assert.Len(t, digest, domain.DigestSize)

	assert.True(t, auth.Verify("test@example.com", sig.Hex()))
	assert.False(t, auth.Verify("other@example.com", sig.Hex()))
	assert.False(t, auth.Verify("test@example.com", "zz-not-hex"))
	assert.False(t, auth.Verify("", sig.Hex()))

	publicPEM, err := sharedKeys(t).PublicKeyPEM()
	require.NoError(t, err)
	assert.True(t, cryptoinfra.VerifyPEM(digest, sig, publicPEM))
}

func TestAuthenticity_PropagatesFailures(t *testing.T) {
	auth := newTestAuthenticity(t)
	_, _, err := auth.Process("   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	uninitialized := NewAuthenticity(cryptoinfra.HashEmail, cryptoinfra.NewSigner(pemfile.NewManager(t.TempDir(), nil)))
	_, _, err = uninitialized.Process("a@b.com")
	assert.True(t, errors.Is(err, domain.ErrKeyUnavailable))

	var nilAuth *Authenticity
	_, _, err = nilAuth.Process("a@b.com")
	assert.Error(t, err)
	assert.False(t, nilAuth.Verify("a@b.com", "00"))
}
