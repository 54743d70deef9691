package service

import "errors"

var (
	// ErrNotFound is returned when no book matches a lookup.
	ErrNotFound = errors.New("book not found")
	// ErrInvalidQuery is returned for blank query strings.
	ErrInvalidQuery = errors.New("query must not be blank")
	// ErrDescriptionsDisabled is returned when no describer is configured.
	ErrDescriptionsDisabled = errors.New("descriptions are not configured")
)
