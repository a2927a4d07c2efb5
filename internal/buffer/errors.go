package buffer

import "errors"

// Errors returned by buffer operations.
var (
	// ErrRangeInvalid indicates an edit range outside the buffer contents.
	ErrRangeInvalid = errors.New("invalid edit range")

	// ErrDestroyed indicates an operation on a destroyed buffer.
	ErrDestroyed = errors.New("buffer destroyed")
)
