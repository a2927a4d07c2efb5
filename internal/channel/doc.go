// Package channel provides the remote channel abstraction and the
// registry that binds buffers to their current channel.
//
// A Handle is a resolved remote endpoint that accepts one synchronization
// event at a time and either acknowledges or rejects it. Resolution is
// lazy: a Resolver may block until a connection exists, and the handle it
// returns changes identity whenever the owning connection changes.
//
// The Registry owns the buffer-to-channel mapping for one connection
// scope. It also owns delivery of Close events, decoupled from buffer
// lifetime, so a close can still be routed after the buffer object that
// produced it is gone.
package channel
