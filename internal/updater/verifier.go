package updater

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	_ "embed"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

//go:embed keys/update_signing.pub.pem
var embeddedPublicKey []byte

var (
	errSignatureMismatch = errors.New("signature does not match image digest")
	errNoKey             = errors.New("no verification key configured")
)

// Verifier checks a raw signature over a SHA-256 digest.
type Verifier interface {
	Verify(digest, sig []byte) error
}

// KeyVerifier verifies RSA PKCS#1 v1.5 or ECDSA ASN.1 signatures.
type KeyVerifier struct {
	key crypto.PublicKey
}

// LoadVerifier reads a PKIX PEM public key from path. An empty path selects
// the key built into the binary.
func LoadVerifier(path string) (*KeyVerifier, error) {
	if path == "" {
		return ParsePublicKeyPEM(embeddedPublicKey)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParsePublicKeyPEM(data)
}

func ParsePublicKeyPEM(data []byte) (*KeyVerifier, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("public key: no PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return NewKeyVerifier(pub)
}

func NewKeyVerifier(pub crypto.PublicKey) (*KeyVerifier, error) {
	switch pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return &KeyVerifier{key: pub}, nil
	default:
		return nil, fmt.Errorf("public key: unsupported type %T", pub)
	}
}

// Verify fails closed: a verifier without a usable key rejects everything.
func (v *KeyVerifier) Verify(digest, sig []byte) error {
	if v == nil {
		return errNoKey
	}
	switch k := v.key.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(k, crypto.SHA256, digest, sig); err != nil {
			return errSignatureMismatch
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(k, digest, sig) {
			return errSignatureMismatch
		}
	default:
		return errNoKey
	}
	return nil
}
