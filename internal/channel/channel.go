package channel

import (
	"context"

	"github.com/dshills/bufsync/internal/protocol"
)

// Handle is a resolved remote endpoint for synchronization events.
type Handle interface {
	// ID identifies the connection this handle belongs to. Events carry
	// the ID they were constructed against so a send resolved on a stale
	// connection cannot be silently redirected to a new one.
	ID() protocol.ChannelID

	// Accept delivers one event. A nil return is an acknowledgement; any
	// error is a uniform delivery rejection regardless of cause.
	Accept(ctx context.Context, ev protocol.Event) error
}

// Identity names a buffer for channel resolution.
type Identity struct {
	BufferID string
	Path     string
}

// Resolver resolves a buffer to its current remote channel. Resolve may
// block until a connection exists; it returns ErrResolverClosed if the
// resolver shuts down while waiting.
type Resolver interface {
	Resolve(ctx context.Context, ident Identity) (Handle, error)
}
