package channel

import "errors"

// Errors returned by channel resolution and close routing.
var (
	// ErrNoChannel indicates no channel is currently resolvable.
	ErrNoChannel = errors.New("no channel available")

	// ErrResolverClosed indicates the registry shut down while a
	// resolution was pending.
	ErrResolverClosed = errors.New("channel resolver closed")
)
