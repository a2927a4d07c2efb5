package session

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dshills/bufsync/internal/protocol"
)

// triggerResync starts a recovery attempt for the buffer's live version.
//
// Entry condition: the live version must be strictly greater than
// lastAttempted. Anything else means a newer edit or a newer resync
// already claims that version or a later one, and this request aborts.
// On entry the claim is taken immediately, before any suspension, so a
// concurrent trigger for the same version sees it and aborts instead of
// launching a duplicate attempt.
func (s *Session) triggerResync() {
	snap := s.buf.Snapshot() // read fresh at trigger time
	if snap.Destroyed {
		return
	}
	if !snap.HasPath {
		panic(ErrNoPath)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if snap.Version <= s.lastAttempted {
		claimed := s.lastAttempted
		s.mu.Unlock()
		s.log.Debug().Int64("version", int64(snap.Version)).Int64("claimed", int64(claimed)).
			Msg("resync aborted: version already claimed")
		return
	}
	s.lastAttempted = snap.Version // claim before any suspension
	s.mu.Unlock()

	rv := snap.Version
	path := snap.Path
	s.log.Info().Str("path", path).Int64("version", int64(rv)).Msg("resync started")
	s.spawn(func() { s.resyncLoop(rv, path) })
}

// resyncLoop retries a Sync send on a fixed interval until the remote
// accepts it or a structural precondition fails. There is no retry
// budget: termination relies on logical preemption, not a failure cap.
func (s *Session) resyncLoop(rv protocol.Version, path string) {
	bo := backoff.NewConstantBackOff(s.retryInterval)
	for {
		if done := s.resyncOnce(rv, path); done {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// resyncOnce performs a single recovery attempt. It returns true when
// the loop should stop: the send was acknowledged, or a precondition
// failed and the attempt is stale. A rejection returns false so the
// caller retries after the fixed delay, re-running every check.
//
// The preconditions are re-validated on every attempt because the buffer
// may be renamed, destroyed, or edited at any point in the unbounded
// retry window; an unconditional resend could overwrite remote state
// already advanced by a subsequent fresh Open or Edit.
func (s *Session) resyncOnce(rv protocol.Version, path string) bool {
	if _, err := s.resolve(); err != nil {
		// Disposed or resolver shut down; a reconnect re-opens from scratch.
		s.log.Debug().Err(err).Str("path", path).Msg("resync aborted: no channel")
		return true
	}

	// Resolution may have suspended. Re-validate the channel: a dropped
	// connection terminates the loop, a replaced one carries the retry.
	h, ok := s.current()
	if !ok {
		s.log.Debug().Str("path", path).Msg("resync aborted: connection dropped")
		return true
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		s.log.Debug().Str("path", path).Msg("resync aborted: session disposed")
		return true
	}
	claim := s.lastAttempted
	s.mu.Unlock()

	snap := s.buf.Snapshot()
	switch {
	case snap.Destroyed:
		s.log.Debug().Str("path", path).Msg("resync aborted: buffer destroyed")
		return true
	case !snap.HasPath || snap.Path != path:
		s.log.Debug().Str("path", path).Str("current", snap.Path).
			Msg("resync aborted: path changed")
		return true
	case claim != rv:
		s.log.Debug().Int64("version", int64(rv)).Int64("claimed", int64(claim)).
			Msg("resync aborted: preempted by later claim")
		return true
	case snap.Version != rv:
		s.log.Debug().Int64("version", int64(rv)).Int64("live", int64(snap.Version)).
			Msg("resync aborted: newer edit landed")
		return true
	}

	ev := protocol.Sync{
		FileVersion: protocol.FileVersion{Channel: h.ID(), Path: path, Version: rv},
		Contents:    snap.Text,
	}
	if err := h.Accept(s.ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("path", path).Int64("version", int64(rv)).
			Dur("retry_in", s.retryInterval).Msg("resync rejected, retrying")
		return false
	}

	s.mu.Lock()
	if rv > s.serverVersion {
		s.serverVersion = rv
	}
	s.mu.Unlock()

	s.registry.RecordAck(path, rv)
	s.log.Info().Str("path", path).Int64("version", int64(rv)).Msg("resync succeeded")
	return true
}
