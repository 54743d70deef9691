package events

import "errors"

var (
	// ErrNilPublisher is returned by New without a publisher.
	ErrNilPublisher = errors.New("events: nil publisher")
	// ErrStopped is returned by Start after Shutdown.
	ErrStopped = errors.New("events: pipeline stopped")
)
