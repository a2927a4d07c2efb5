// Package transport implements the remote channel over a websocket.
//
// Each outgoing event is framed with a sequence number; the remote
// answers every frame with an acknowledgement or a rejection carrying
// that sequence number. A Channel therefore satisfies the channel.Handle
// contract: Accept delivers one event and reports the remote's verdict.
//
// The frame codec is shared with the consumer side so the demo server
// speaks the same wire format.
package transport
