package domain

import "time"

type VerificationResult struct {
	RecordID       string    `json:"record_id"`
	HashMatches    bool      `json:"hash_matches"`
	SignatureValid bool      `json:"signature_valid"`
	CheckedAt      time.Time `json:"checked_at"`
}

func (r VerificationResult) Valid() bool {
	return r.HashMatches && r.SignatureValid
}
