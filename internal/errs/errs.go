// Package errs defines the error taxonomy shared across the service.
// Sentinels are matched with errors.Is; callers wrap them with context
// via fmt.Errorf("...: %w", err).
package errs

import "errors"

var (
	// ErrStoreUnavailable signals that the key-value backend could not be
	// reached. Surfaced to callers as a sanitized error event.
	ErrStoreUnavailable = errors.New("conversation store unavailable")

	// ErrUpstreamTimeout signals that the generative service exceeded its
	// read deadline.
	ErrUpstreamTimeout = errors.New("upstream generation timeout")

	// ErrUpstreamProtocol signals a bad status or malformed body from the
	// generative service.
	ErrUpstreamProtocol = errors.New("upstream protocol error")

	// ErrNotFound signals a conversation or user lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals malformed caller input.
	ErrValidation = errors.New("invalid request")
)
