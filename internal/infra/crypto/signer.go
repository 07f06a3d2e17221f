package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"recordproof/internal/domain"
)

// KeySource hands out the process signing key without exposing it.
type KeySource interface {
	Signer() (crypto.Signer, error)
	PublicKey() (*rsa.PublicKey, error)
}

// Signer signs digests with the process key pair.
//
// The signed message is the digest's hex text, hashed again with SHA-256
// inside RSASSA-PKCS1-v1_5. Issued signatures depend on this exact
// construction.
type Signer struct {
	keys   KeySource
	random io.Reader
}

func NewSigner(keys KeySource) *Signer {
	return &Signer{keys: keys, random: rand.Reader}
}

func (s *Signer) Sign(digest domain.Digest) (domain.Signature, error) {
	if s == nil || s.keys == nil {
		return nil, fmt.Errorf("sign: %w: no key source", domain.ErrKeyUnavailable)
	}
	if len(digest) == 0 {
		return nil, fmt.Errorf("sign: %w: digest is empty", domain.ErrInvalidInput)
	}
	signer, err := s.keys.Signer()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(s.random, signedMessageHash(digest), crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return domain.Signature(sig), nil
}

// Verify checks sig against the process public key.
func (s *Signer) Verify(digest domain.Digest, sig domain.Signature) bool {
	if s == nil || s.keys == nil {
		return false
	}
	pub, err := s.keys.PublicKey()
	if err != nil {
		return false
	}
	return Verify(digest, sig, pub)
}

// Verify reports whether sig is a valid signature of digest under pub.
// Malformed input yields false.
func Verify(digest domain.Digest, sig domain.Signature, pub *rsa.PublicKey) bool {
	if pub == nil || len(digest) == 0 || len(sig) == 0 {
		return false
	}
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, signedMessageHash(digest), sig) == nil
}

// VerifyPEM is Verify with an SPKI PEM public key as distributed to verifiers.
func VerifyPEM(digest domain.Digest, sig domain.Signature, publicPEM []byte) bool {
	pub, err := ParsePublicKeyPEM(publicPEM)
	if err != nil {
		return false
	}
	return Verify(digest, sig, pub)
}

func ParsePublicKeyPEM(publicPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

func signedMessageHash(digest domain.Digest) []byte {
	sum := sha256.Sum256([]byte(digest.Hex()))
	return sum[:]
}
