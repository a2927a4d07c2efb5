package protocol

import "fmt"

// Version is a buffer's monotonic mutation counter. It is owned by the
// buffer, increments exactly once per accepted mutation (including undo
// and redo), and never decreases.
type Version int64

// ChannelID identifies a single resolved remote channel. A new ID is
// minted each time a connection is established, so events bound to a
// stale connection can be told apart from events bound to its successor.
type ChannelID string

// FileVersion binds an event to the path, version, and channel it was
// constructed for. Channel is a local binding only and is not part of
// the wire form.
type FileVersion struct {
	Channel ChannelID `json:"-"`
	Path    string    `json:"path"`
	Version Version   `json:"version"`
}

// String returns a human-readable representation of the file version.
func (fv FileVersion) String() string {
	return fmt.Sprintf("%s@%d", fv.Path, fv.Version)
}
