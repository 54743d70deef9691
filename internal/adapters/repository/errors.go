package repository

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrInvalidEntry = errors.New("invalid catalog entry")
	ErrDuplicateID  = errors.New("duplicate catalog id")
	ErrClosed       = errors.New("catalog store closed")
	ErrSeed         = errors.New("catalog seed failed")
)
