// Package protocol defines the buffer synchronization event protocol.
//
// A local buffer and its remote replica are kept consistent by streaming
// an ordered sequence of versioned events. The protocol has four event
// variants:
//
//   - Open: full snapshot sent when a buffer starts being observed or
//     after a rename gives it a new identity.
//   - Edit: an incremental delta describing a single mutation.
//   - Sync: a full-content snapshot sent to repair divergence after a
//     rejected delivery.
//   - Close: notifies the remote that a path is no longer observed.
//
// Every Open, Edit, and Sync carries a FileVersion binding the event to a
// specific path, buffer version, and resolved channel. The version is the
// sole ordering key between local and remote state; the channel binding
// prevents an event resolved against one connection from being silently
// redirected to another.
//
// The JSON wire form produced by Marshal is the serialization contract
// with the remote consumer and must be kept stable field for field.
package protocol
