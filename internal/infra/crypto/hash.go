package crypto

import (
	"crypto/sha512"
	"fmt"

	"recordproof/internal/domain"
)

// HashEmail returns the SHA-384 digest of the normalized address.
func HashEmail(email string) (domain.Digest, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("hash email: %w: email is empty", domain.ErrInvalidInput)
	}
	sum := sha512.Sum384([]byte(normalized))
	return domain.Digest(sum[:]), nil
}
