package buffer

import "github.com/dshills/bufsync/internal/protocol"

// Snapshot is a consistent view of buffer identity and content, captured
// under a single lock acquisition.
type Snapshot struct {
	Path      string
	HasPath   bool
	Version   protocol.Version
	Text      string
	Destroyed bool
}

// Snapshot returns a consistent snapshot of the buffer's current state.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Path:      b.path,
		HasPath:   b.hasPath,
		Version:   b.version,
		Text:      b.text,
		Destroyed: b.destroyed,
	}
}
