package protocol

import "errors"

// Errors returned by the codec.
var (
	// ErrUnknownEventType indicates a wire frame with an unrecognized tag.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMalformedEvent indicates a wire frame that could not be decoded.
	ErrMalformedEvent = errors.New("malformed event")
)
