package transport

import "errors"

// Errors returned by the websocket channel.
var (
	// ErrRejected indicates the remote declined an event.
	ErrRejected = errors.New("event rejected by remote")

	// ErrChannelClosed indicates the connection is gone.
	ErrChannelClosed = errors.New("channel closed")

	// ErrMalformedFrame indicates a frame that could not be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
)
