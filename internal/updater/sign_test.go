package updater

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedKeyLoads(t *testing.T) {
	v, err := LoadVerifier("")
	require.NoError(t, err)
	_, ok := v.key.(*rsa.PublicKey)
	assert.True(t, ok)
}

func TestSignVerifyRSA(t *testing.T) {
	key, err := GenerateKey(2048)
	require.NoError(t, err)

	privPEM, err := EncodePrivateKeyPEM(key)
	require.NoError(t, err)
	pubPEM, err := EncodePublicKeyPEM(key.Public())
	require.NoError(t, err)

	signer, err := ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	v, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	digest, n, err := Digest(bytes.NewReader([]byte("firmware image")))
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)

	sig, err := Sign(signer, digest)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(digest, sig))

	other, _, _ := Digest(bytes.NewReader([]byte("firmware imagE")))
	assert.Error(t, v.Verify(other, sig))
}

func TestKeylessVerifierRejectsEverything(t *testing.T) {
	digest, _, err := Digest(bytes.NewReader([]byte("tampered")))
	require.NoError(t, err)

	var zero KeyVerifier
	assert.ErrorIs(t, zero.Verify(digest, []byte("garbage")), errNoKey)
	assert.ErrorIs(t, (&KeyVerifier{}).Verify(digest, nil), errNoKey)

	var missing *KeyVerifier
	assert.ErrorIs(t, missing.Verify(digest, []byte("garbage")), errNoKey)
}

func TestSignVerifyECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	signer, err := ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)

	v, err := NewKeyVerifier(key.Public())
	require.NoError(t, err)

	digest, _, _ := Digest(bytes.NewReader([]byte("content image")))
	sig, err := Sign(signer, digest)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(digest, sig))
	assert.Error(t, v.Verify(digest, sig[:len(sig)-1]))
}

func TestParseKeyErrors(t *testing.T) {
	_, err := ParsePublicKeyPEM([]byte("not pem"))
	assert.Error(t, err)
	_, err = ParsePrivateKeyPEM([]byte("not pem"))
	assert.Error(t, err)
	_, err = NewKeyVerifier("a string")
	assert.Error(t, err)
}
