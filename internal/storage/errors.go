package storage

import "errors"

var (
	// ErrNotFound means no record matches the requested key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means the key was already written. Runs, assessments
	// and evaluations are write-once.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput rejects records that fail validation before any write.
	ErrInvalidInput = errors.New("invalid input")
)
