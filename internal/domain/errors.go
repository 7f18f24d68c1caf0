package domain

import "errors"

var (
	// ErrLinkNotFound is returned when no active link exists for a code.
	ErrLinkNotFound = errors.New("link not found")

	// ErrInvalidURL is returned for syntactically malformed or non-http(s)
	// destination URLs. Never retried.
	ErrInvalidURL = errors.New("invalid url")

	// ErrCodeTaken is returned by the store when the unique constraint on
	// the code column rejects a create. Retryable with a fresh code.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrCodeSpaceExhausted is returned when no unique code could be found
	// within the bounded attempt budget. Propagated to creation callers.
	ErrCodeSpaceExhausted = errors.New("no unique short code available")
)
