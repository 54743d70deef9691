package publisher

import "errors"

var (
	// ErrNilPublisher is returned by New when no Watermill publisher is given.
	ErrNilPublisher = errors.New("publisher: nil watermill publisher")
	// ErrClosed is returned when publishing after Close.
	ErrClosed = errors.New("publisher: closed")
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("publisher: circuit open")
)
