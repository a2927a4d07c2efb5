package buffer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/bufsync/internal/protocol"
)

// Edit specifies a range to replace and the new text, in the manner of a
// single editor mutation. An empty range is an insertion; empty NewText
// is a deletion.
type Edit struct {
	Range   protocol.Range
	NewText string
}

// String returns a human-readable representation of the edit.
func (e Edit) String() string {
	if e.Range.IsEmpty() {
		return fmt.Sprintf("Insert(%d, %q)", e.Range.Start, e.NewText)
	}
	if e.NewText == "" {
		return fmt.Sprintf("Delete%s", e.Range)
	}
	return fmt.Sprintf("Replace%s with %q", e.Range, e.NewText)
}

// Buffer is a versioned, observable text buffer.
// All methods are thread-safe.
type Buffer struct {
	mu        sync.RWMutex
	id        string
	path      string
	hasPath   bool
	text      string
	version   protocol.Version
	destroyed bool

	editSubs    *listenerSet[EditInfo]
	pathSubs    *listenerSet[PathChangeInfo]
	destroySubs *listenerSet[DestroyInfo]
}

// Option configures a new buffer.
type Option func(*Buffer)

// WithID sets a stable buffer identity instead of a generated one.
func WithID(id string) Option {
	return func(b *Buffer) { b.id = id }
}

// WithVersion sets the initial version counter.
func WithVersion(v protocol.Version) Option {
	return func(b *Buffer) { b.version = v }
}

// New creates a buffer with the given path and initial content.
// Pass an empty path for a scratch buffer with no file identity.
func New(path, text string, opts ...Option) *Buffer {
	b := &Buffer{
		id:          uuid.NewString(),
		path:        path,
		hasPath:     path != "",
		text:        text,
		editSubs:    newListenerSet[EditInfo](),
		pathSubs:    newListenerSet[PathChangeInfo](),
		destroySubs: newListenerSet[DestroyInfo](),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the buffer's stable identity, independent of its path.
func (b *Buffer) ID() string {
	return b.id
}

// Path returns the buffer's current path, if it has one.
func (b *Buffer) Path() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path, b.hasPath
}

// Version returns the current mutation counter.
func (b *Buffer) Version() protocol.Version {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Text returns the full buffer contents.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// IsDestroyed reports whether the buffer has been destroyed.
func (b *Buffer) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// Apply performs a single edit, increments the version exactly once, and
// notifies edit listeners with a snapshot of the mutation.
func (b *Buffer) Apply(e Edit) error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrDestroyed
	}
	if !e.Range.IsValid() || e.Range.End > len(b.text) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s in %d bytes", ErrRangeInvalid, e.Range, len(b.text))
	}

	oldText := b.text[e.Range.Start:e.Range.End]
	b.text = b.text[:e.Range.Start] + e.NewText + b.text[e.Range.End:]
	b.version++

	info := EditInfo{
		Path:     b.path,
		HasPath:  b.hasPath,
		Version:  b.version,
		OldRange: e.Range,
		NewRange: protocol.NewRange(e.Range.Start, e.Range.Start+len(e.NewText)),
		OldText:  oldText,
		NewText:  e.NewText,
	}
	b.mu.Unlock()

	b.editSubs.notify(info)
	return nil
}

// Rename changes the buffer's path and notifies path-change listeners
// with the previous path. The version counter is untouched: renames are
// identity changes, not mutations.
func (b *Buffer) Rename(newPath string) error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrDestroyed
	}
	info := PathChangeInfo{
		OldPath: b.path,
		NewPath: newPath,
		Version: b.version,
	}
	b.path = newPath
	b.hasPath = newPath != ""
	b.mu.Unlock()

	b.pathSubs.notify(info)
	return nil
}

// Destroy marks the buffer destroyed and notifies destroy listeners with
// the last known path. Destroy is idempotent; only the first call
// notifies. All listeners are dropped after the final notification.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	info := DestroyInfo{
		Path:    b.path,
		HasPath: b.hasPath,
		Version: b.version,
	}
	b.mu.Unlock()

	b.destroySubs.notify(info)

	b.editSubs.clear()
	b.pathSubs.clear()
	b.destroySubs.clear()
}

// OnEdit registers an edit listener.
func (b *Buffer) OnEdit(fn EditListener) Subscription {
	return b.editSubs.add(fn)
}

// OnPathChange registers a rename listener.
func (b *Buffer) OnPathChange(fn PathChangeListener) Subscription {
	return b.pathSubs.add(fn)
}

// OnDestroy registers a destruction listener.
func (b *Buffer) OnDestroy(fn DestroyListener) Subscription {
	return b.destroySubs.add(fn)
}
