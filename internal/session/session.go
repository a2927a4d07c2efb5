package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/bufsync/internal/buffer"
	"github.com/dshills/bufsync/internal/channel"
	"github.com/dshills/bufsync/internal/protocol"
)

// VersionedBuffer is the buffer contract a session consumes. The version
// counter must strictly increase on every edit notification.
type VersionedBuffer interface {
	ID() string
	Path() (string, bool)
	Version() protocol.Version
	Text() string
	IsDestroyed() bool
	Snapshot() buffer.Snapshot
	OnEdit(buffer.EditListener) buffer.Subscription
	OnPathChange(buffer.PathChangeListener) buffer.Subscription
	OnDestroy(buffer.DestroyListener) buffer.Subscription
}

// noVersion is the bookkeeping value before any send has been initiated
// or acknowledged. Buffer versions start at 0, so the first Open at
// version 0 still advances both counters.
const noVersion protocol.Version = -1

// Session synchronizes one buffer with its remote channel.
type Session struct {
	buf      VersionedBuffer
	registry *channel.Registry

	retryInterval time.Duration
	log           zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	started       bool
	disposed      bool
	ch            channel.Handle // nil means no active connection
	serverVersion protocol.Version
	lastAttempted protocol.Version
	subs          []buffer.Subscription

	wg sync.WaitGroup
}

// New creates a session for the given buffer. The session is inert until
// Start is called.
func New(buf VersionedBuffer, registry *channel.Registry, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		buf:           buf,
		registry:      registry,
		retryInterval: time.Second,
		log:           zerolog.Nop(),
		ctx:           ctx,
		cancel:        cancel,
		serverVersion: noVersion,
		lastAttempted: noVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the buffer's notification streams and sends the
// initial Open snapshot. Panics with ErrNoPath if the buffer has no
// path: a pathless buffer cannot be opened remotely.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	s.subs = []buffer.Subscription{
		s.buf.OnEdit(func(info buffer.EditInfo) {
			s.spawn(func() { s.edit(info) })
		}),
		s.buf.OnPathChange(func(info buffer.PathChangeInfo) {
			s.spawn(func() { s.pathChanged(info) })
		}),
		s.buf.OnDestroy(func(info buffer.DestroyInfo) {
			s.spawn(func() { s.destroyed(info) })
		}),
	}
	s.mu.Unlock()

	s.registry.Register(s.identity())
	s.spawn(func() { s.open() })
	return nil
}

// Dispose tears the session down: clears the channel reference, removes
// buffer subscriptions, and signals any in-flight resync to terminate on
// its next iteration. Idempotent.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.ch = nil
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Remove()
	}
	s.registry.Unregister(s.identity())
	s.log.Debug().Msg("session disposed")
}

// ServerVersion returns the highest version the remote has acknowledged,
// or -1 if nothing has been acknowledged yet.
func (s *Session) ServerVersion() protocol.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverVersion
}

// LastAttempted returns the highest version for which a send has been
// initiated, or -1 if none.
func (s *Session) LastAttempted() protocol.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAttempted
}

// Wait blocks until all in-flight sends and recovery loops have
// returned. Intended for orderly shutdown after Dispose.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) identity() channel.Identity {
	path, _ := s.buf.Path()
	return channel.Identity{BufferID: s.buf.ID(), Path: path}
}

func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// current returns the session's channel if it still matches the
// registry's live connection, without blocking. A cached handle whose
// connection has been cleared or replaced is released, so the session
// rebinds to whatever the registry holds now. Events always carry the
// identity of the connection they will travel on.
func (s *Session) current() (channel.Handle, bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, false
	}
	cached := s.ch
	s.mu.Unlock()

	live, ok := s.registry.Current()
	if !ok {
		if cached != nil {
			s.release(cached)
		}
		return nil, false
	}
	if cached != nil && cached.ID() == live.ID() {
		return cached, true
	}
	if cached != nil {
		s.log.Debug().Str("stale", string(cached.ID())).Str("live", string(live.ID())).
			Msg("channel replaced, rebinding")
		s.release(cached)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, false
	}
	if s.ch == nil {
		s.ch = live
	}
	return s.ch, true
}

// release drops the cached channel if it is still the given one.
func (s *Session) release(stale channel.Handle) {
	s.mu.Lock()
	if s.ch != nil && s.ch.ID() == stale.ID() {
		s.ch = nil
	}
	s.mu.Unlock()
}

// resolve returns the session's channel, blocking on the registry if no
// connection is live. Resolution is the suspension point of the
// protocol: the buffer may mutate while it is pending, so callers must
// snapshot event state beforehand and re-validate afterwards.
func (s *Session) resolve() (channel.Handle, error) {
	if h, ok := s.current(); ok {
		return h, nil
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrDisposed
	}
	s.mu.Unlock()

	h, err := s.registry.Resolve(s.ctx, s.identity())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	if s.ch == nil {
		s.ch = h
	}
	return s.ch, nil
}

// open sends a full Open snapshot for the buffer's current state. State
// is captured before channel resolution so a concurrent mutation cannot
// leak into the event.
func (s *Session) open() {
	snap := s.buf.Snapshot()
	if snap.Destroyed {
		return
	}
	if !snap.HasPath {
		panic(ErrNoPath)
	}

	h, err := s.resolve()
	if err != nil {
		s.log.Debug().Err(err).Str("path", snap.Path).Msg("open dropped: no channel")
		return
	}

	ev := protocol.Open{
		FileVersion: protocol.FileVersion{Channel: h.ID(), Path: snap.Path, Version: snap.Version},
		Contents:    snap.Text,
	}
	s.deliver(h, ev)
}

// edit translates a buffer mutation into an Edit event. The notification
// itself is the pre-suspension snapshot: every value the event needs was
// captured when the mutation fired. If no channel is resolvable the
// event is dropped; a later resync or fresh open subsumes it.
func (s *Session) edit(info buffer.EditInfo) {
	if !info.HasPath {
		panic(ErrNoPath)
	}

	h, ok := s.current()
	if !ok {
		s.log.Debug().Str("path", info.Path).Int64("version", int64(info.Version)).
			Msg("edit dropped: no channel")
		return
	}

	ev := protocol.Edit{
		FileVersion: protocol.FileVersion{Channel: h.ID(), Path: info.Path, Version: info.Version},
		OldRange:    info.OldRange,
		NewRange:    info.NewRange,
		OldText:     info.OldText,
		NewText:     info.NewText,
	}
	s.deliver(h, ev)
}

// pathChanged routes a Close for the old path through the registry, then
// rebinds the channel and sends a fresh Open under the new path.
func (s *Session) pathChanged(info buffer.PathChangeInfo) {
	if info.OldPath != "" {
		s.registry.SendClose(info.OldPath, info.Version)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.ch = nil // force re-resolution under the new identity
	s.mu.Unlock()

	s.open()
}

// destroyed routes the final Close for the last known path, then tears
// the session down. No further events are constructed for this buffer.
func (s *Session) destroyed(info buffer.DestroyInfo) {
	if info.HasPath {
		s.registry.SendClose(info.Path, info.Version)
	}
	s.Dispose()
}

// deliver sends one event and interprets the outcome. Acknowledgement
// max-merges both version counters, so a late ack for an old version
// can never lower them. Rejection triggers a resync only when the
// event's path is still the buffer's live path; otherwise a rename has
// superseded the event and the fresh Open for the new path owns
// recovery.
func (s *Session) deliver(h channel.Handle, ev protocol.Event) {
	if err := h.Accept(s.ctx, ev); err != nil {
		s.log.Debug().Err(err).Str("event", protocol.Describe(ev)).Msg("delivery rejected")

		snap := s.buf.Snapshot()
		if snap.Destroyed || !snap.HasPath || snap.Path != ev.EventPath() {
			s.log.Debug().Str("event", protocol.Describe(ev)).
				Msg("rejected event superseded, resync skipped")
			return
		}
		s.triggerResync()
		return
	}

	v := ev.EventVersion()
	s.mu.Lock()
	if v > s.serverVersion {
		s.serverVersion = v
	}
	if v > s.lastAttempted {
		s.lastAttempted = v
	}
	s.mu.Unlock()

	s.registry.RecordAck(ev.EventPath(), v)
	s.log.Debug().Str("event", protocol.Describe(ev)).Msg("acknowledged")
}
