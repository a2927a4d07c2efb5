package buffer

import (
	"sync"

	"github.com/dshills/bufsync/internal/protocol"
)

// EditInfo is the snapshot delivered to edit listeners. It describes the
// buffer state at the moment the mutation was accepted, so a listener
// that suspends before acting still has consistent values.
type EditInfo struct {
	Path     string
	HasPath  bool
	Version  protocol.Version // version after the mutation
	OldRange protocol.Range
	NewRange protocol.Range
	OldText  string
	NewText  string
}

// PathChangeInfo is delivered to path-change listeners.
type PathChangeInfo struct {
	OldPath string
	NewPath string
	Version protocol.Version
}

// DestroyInfo is delivered to destroy listeners. Path is the last known
// path at destruction time.
type DestroyInfo struct {
	Path    string
	HasPath bool
	Version protocol.Version
}

// EditListener receives edit notifications.
type EditListener func(EditInfo)

// PathChangeListener receives rename notifications.
type PathChangeListener func(PathChangeInfo)

// DestroyListener receives the destruction notification.
type DestroyListener func(DestroyInfo)

// Subscription represents a registered listener that can be removed.
type Subscription interface {
	// Remove unregisters the listener. Safe to call more than once.
	Remove()
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Remove() {
	s.once.Do(s.remove)
}

// listenerSet holds registered listeners of one kind, keyed by
// registration order so removal is O(1).
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func newListenerSet[T any]() *listenerSet[T] {
	return &listenerSet[T]{fns: make(map[int]func(T))}
}

func (ls *listenerSet[T]) add(fn func(T)) Subscription {
	ls.mu.Lock()
	id := ls.nextID
	ls.nextID++
	ls.fns[id] = fn
	ls.mu.Unlock()

	return &subscription{remove: func() {
		ls.mu.Lock()
		delete(ls.fns, id)
		ls.mu.Unlock()
	}}
}

// notify invokes all registered listeners with the given snapshot.
// Listeners are called outside the buffer lock.
func (ls *listenerSet[T]) notify(info T) {
	ls.mu.Lock()
	fns := make([]func(T), 0, len(ls.fns))
	for _, fn := range ls.fns {
		fns = append(fns, fn)
	}
	ls.mu.Unlock()

	for _, fn := range fns {
		fn(info)
	}
}

func (ls *listenerSet[T]) clear() {
	ls.mu.Lock()
	ls.fns = make(map[int]func(T))
	ls.mu.Unlock()
}
