package domain

import "errors"

var (
	ErrKeyUnavailable  = errors.New("key unavailable")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSchemaViolation = errors.New("schema violation")
	ErrMalformedInput  = errors.New("malformed input")

	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)
