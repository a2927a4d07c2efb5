package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/bufsync/internal/protocol"
)

// Errors returned when an event cannot be applied to the replica store.
var (
	// ErrUnknownPath indicates an edit or close for a path never opened.
	ErrUnknownPath = errors.New("unknown path")

	// ErrVersionSkew indicates an edit that does not follow the
	// replica's version contiguously.
	ErrVersionSkew = errors.New("version skew")

	// ErrRangeMismatch indicates an edit whose old range or old text
	// does not match the replica contents.
	ErrRangeMismatch = errors.New("range mismatch")
)

// replica is the remote copy of one buffer.
type replica struct {
	version  protocol.Version
	contents string
}

// store holds the replicas for one connection. Open and Sync replace a
// replica wholesale; Edit is validated against the replica and rejected
// on any inconsistency, which is what drives the sender into resync.
type store struct {
	mu       sync.Mutex
	replicas map[string]*replica
}

func newStore() *store {
	return &store{replicas: make(map[string]*replica)}
}

// apply consumes one event and returns an error when it must be
// rejected.
func (s *store) apply(ev protocol.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case protocol.Open:
		s.replicas[e.FileVersion.Path] = &replica{
			version:  e.FileVersion.Version,
			contents: e.Contents,
		}
		return nil

	case protocol.Sync:
		// A sync snapshot is authoritative; it is never validated
		// incrementally.
		s.replicas[e.FileVersion.Path] = &replica{
			version:  e.FileVersion.Version,
			contents: e.Contents,
		}
		return nil

	case protocol.Edit:
		r, ok := s.replicas[e.FileVersion.Path]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPath, e.FileVersion.Path)
		}
		if e.FileVersion.Version != r.version+1 {
			return fmt.Errorf("%w: replica at %d, edit for %d",
				ErrVersionSkew, r.version, e.FileVersion.Version)
		}
		if !e.OldRange.IsValid() || e.OldRange.End > len(r.contents) {
			return fmt.Errorf("%w: %s outside %d bytes", ErrRangeMismatch, e.OldRange, len(r.contents))
		}
		if r.contents[e.OldRange.Start:e.OldRange.End] != e.OldText {
			return fmt.Errorf("%w: old text differs", ErrRangeMismatch)
		}
		r.contents = r.contents[:e.OldRange.Start] + e.NewText + r.contents[e.OldRange.End:]
		r.version = e.FileVersion.Version
		return nil

	case protocol.Close:
		if _, ok := s.replicas[e.Path]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPath, e.Path)
		}
		delete(s.replicas, e.Path)
		return nil

	default:
		return fmt.Errorf("unsupported event type %q", ev.Type())
	}
}

// get returns a copy of the replica for a path.
func (s *store) get(path string) (replica, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replicas[path]
	if !ok {
		return replica{}, false
	}
	return *r, true
}

// size returns the number of open replicas.
func (s *store) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replicas)
}
