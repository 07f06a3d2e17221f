package domain

import "encoding/hex"

const (
	// SignAlgorithm and HashAlgorithm name the primitives in exported collections.
	SignAlgorithm = "RSA-2048"
	HashAlgorithm = "SHA-384"

	KeyBits    = 2048
	DigestSize = 48
)

// Digest is the SHA-384 value of a normalized email address.
type Digest []byte

func (d Digest) Hex() string {
	return hex.EncodeToString(d)
}

// Signature is an RSASSA-PKCS1-v1_5 signature over a Digest's hex text.
type Signature []byte

func (s Signature) Hex() string {
	return hex.EncodeToString(s)
}

// ParseSignatureHex decodes a hex signature. It accepts either case.
func ParseSignatureHex(value string) (Signature, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	return Signature(raw), nil
}
