// Package buffer provides the versioned text buffer observed by a sync
// session.
//
// A Buffer is the locally authoritative document: it owns the text, the
// current path, and the monotonic version counter that orders mutations.
// Every accepted edit increments the version exactly once and notifies
// subscribed listeners with a snapshot of the mutation (old and new
// range, old and new text, the path and version at that instant).
// Listeners therefore never need to read back buffer state that a later
// mutation may already have changed.
//
// Renames and destruction are delivered on separate notification
// streams. All methods are safe for concurrent use.
package buffer
