package channel

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/bufsync/internal/protocol"
)

// AckJournal records acknowledged versions per path. Implementations are
// optional; a nil journal disables recording.
type AckJournal interface {
	// RecordAck stores the highest acknowledged version for a path.
	RecordAck(path string, v protocol.Version) error

	// Forget removes a path after its close has been delivered.
	Forget(path string) error
}

// Registry binds observed buffers to the current remote channel and
// routes Close events independently of buffer lifetime.
//
// A registry serves one connection scope: SetHandle installs the channel
// for a new connection, Clear removes it on disconnect, and pending
// resolutions block until a handle is available again.
type Registry struct {
	mu     sync.Mutex
	handle Handle
	ready  chan struct{}
	closed bool
	done   chan struct{}

	identities mapset.Set[string]

	journal      AckJournal
	closeTimeout time.Duration
	log          zerolog.Logger
}

// RegistryOption configures a registry.
type RegistryOption func(*Registry)

// WithJournal sets the acknowledged-version journal.
func WithJournal(j AckJournal) RegistryOption {
	return func(r *Registry) { r.journal = j }
}

// WithCloseTimeout bounds the delivery time of a routed Close event.
func WithCloseTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.closeTimeout = d }
}

// WithLogger sets the registry's logger.
func WithLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a registry with no active channel.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
		identities:   mapset.NewSet[string](),
		closeTimeout: 5 * time.Second,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetHandle installs the channel for the current connection, waking any
// pending resolutions. Passing nil is equivalent to Clear.
func (r *Registry) SetHandle(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.handle = h
	if h != nil {
		select {
		case <-r.ready:
		default:
			close(r.ready)
		}
		r.log.Debug().Str("channel", string(h.ID())).Msg("channel installed")
		return
	}
	r.clearLocked()
}

// Clear removes the current channel. Subsequent resolutions block until
// a new handle is installed.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Registry) clearLocked() {
	r.handle = nil
	select {
	case <-r.ready:
		r.ready = make(chan struct{})
	default:
	}
}

// Current returns the installed channel without blocking.
func (r *Registry) Current() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle, r.handle != nil
}

// Resolve blocks until a channel is available, the context is done, or
// the registry is closed. It implements Resolver.
func (r *Registry) Resolve(ctx context.Context, ident Identity) (Handle, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrResolverClosed
		}
		if r.handle != nil {
			h := r.handle
			r.mu.Unlock()
			return h, nil
		}
		ready := r.ready
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
			return nil, ErrResolverClosed
		case <-ready:
		}
	}
}

// Register records that a buffer identity is being observed.
func (r *Registry) Register(ident Identity) {
	r.identities.Add(ident.BufferID)
}

// Unregister removes a buffer identity.
func (r *Registry) Unregister(ident Identity) {
	r.identities.Remove(ident.BufferID)
}

// Observed returns the number of registered buffer identities.
func (r *Registry) Observed() int {
	return r.identities.Cardinality()
}

// RecordAck forwards an acknowledged version to the journal, if any.
// Journal failures are logged, never surfaced: the in-memory session
// state remains the source of truth.
func (r *Registry) RecordAck(path string, v protocol.Version) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RecordAck(path, v); err != nil {
		r.log.Warn().Err(err).Str("path", path).Int64("version", int64(v)).
			Msg("journal record failed")
	}
}

// SendClose routes a Close event for a path. Delivery is keyed by path
// rather than by a live buffer, so it works after the buffer object is
// gone. It is fire-and-forget in the error sense: failures are logged
// and dropped, never retried, and the remote reconciles on its next open
// for the path. Delivery itself is synchronous and bounded by the close
// timeout, so a close routed before a fresh open reaches the channel
// first.
func (r *Registry) SendClose(path string, v protocol.Version) {
	h, ok := r.Current()
	if !ok {
		r.log.Debug().Str("path", path).Msg("close dropped: no channel")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.closeTimeout)
	defer cancel()

	ev := protocol.Close{Path: path, Version: v}
	if err := h.Accept(ctx, ev); err != nil {
		r.log.Warn().Err(err).Str("path", path).Int64("version", int64(v)).
			Msg("close delivery failed")
		return
	}
	if r.journal != nil {
		if err := r.journal.Forget(path); err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("journal forget failed")
		}
	}
	r.log.Debug().Str("path", path).Int64("version", int64(v)).Msg("close delivered")
}

// Close shuts the registry down. Pending and future resolutions fail
// with ErrResolverClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.handle = nil
	close(r.done)
}
