package usecase

import (
	"errors"

	"recordproof/internal/domain"
)

// Authenticity turns an email into the (digest, signature) pair stored
// with a record.
type Authenticity struct {
	Hash   func(email string) (domain.Digest, error)
	Signer DigestSigner
}

func NewAuthenticity(hash func(email string) (domain.Digest, error), signer DigestSigner) *Authenticity {
	return &Authenticity{Hash: hash, Signer: signer}
}

func (a *Authenticity) Process(email string) (domain.Digest, domain.Signature, error) {
	if a == nil || a.Hash == nil || a.Signer == nil {
		return nil, nil, errors.New("authenticity pipeline is not configured")
	}
	digest, err := a.Hash(email)
	if err != nil {
		return nil, nil, err
	}
	sig, err := a.Signer.Sign(digest)
	if err != nil {
		return nil, nil, err
	}
	return digest, sig, nil
}

// Verify reports whether sigHex is the process signature for email.
func (a *Authenticity) Verify(email, sigHex string) bool {
	if a == nil || a.Hash == nil || a.Signer == nil {
		return false
	}
	digest, err := a.Hash(email)
	if err != nil {
		return false
	}
	sig, err := domain.ParseSignatureHex(sigHex)
	if err != nil {
		return false
	}
	return a.Signer.Verify(digest, sig)
}
