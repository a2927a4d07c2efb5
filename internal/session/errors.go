package session

import "errors"

// Errors returned by session operations.
var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrDisposed indicates an operation on a disposed session.
	ErrDisposed = errors.New("session disposed")

	// ErrNoPath indicates an event that requires a path was constructed
	// for a buffer without one. This is a broken caller contract, not a
	// transient sync fault, and is raised as a panic.
	ErrNoPath = errors.New("event requires a path but buffer has none")
)
