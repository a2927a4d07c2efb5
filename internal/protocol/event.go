package protocol

import "fmt"

// EventType tags an event variant on the wire.
type EventType string

// Event type tags.
const (
	EventOpen  EventType = "open"
	EventEdit  EventType = "edit"
	EventSync  EventType = "sync"
	EventClose EventType = "close"
)

// Event is one unit of the synchronization protocol.
type Event interface {
	// Type returns the variant tag.
	Type() EventType

	// EventVersion returns the buffer version the event describes.
	EventVersion() Version

	// EventPath returns the path the event is addressed to.
	EventPath() string
}

// Open is a full snapshot sent at subscription time or after a rename.
type Open struct {
	FileVersion FileVersion `json:"fileVersion"`
	Contents    string      `json:"contents"`
}

// Type returns the variant tag.
func (Open) Type() EventType { return EventOpen }

// EventVersion returns the buffer version the event describes.
func (e Open) EventVersion() Version { return e.FileVersion.Version }

// EventPath returns the path the event is addressed to.
func (e Open) EventPath() string { return e.FileVersion.Path }

// Edit is an incremental delta produced by a single buffer mutation.
// OldRange and OldText describe the replaced span before the mutation,
// NewRange and NewText the span that replaced it.
type Edit struct {
	FileVersion FileVersion `json:"fileVersion"`
	OldRange    Range       `json:"oldRange"`
	NewRange    Range       `json:"newRange"`
	OldText     string      `json:"oldText"`
	NewText     string      `json:"newText"`
}

// Type returns the variant tag.
func (Edit) Type() EventType { return EventEdit }

// EventVersion returns the buffer version the event describes.
func (e Edit) EventVersion() Version { return e.FileVersion.Version }

// EventPath returns the path the event is addressed to.
func (e Edit) EventPath() string { return e.FileVersion.Path }

// Sync is a full-content snapshot sent for recovery. The version is the
// resync target; the remote replaces its state wholesale and is never
// asked to validate it incrementally.
type Sync struct {
	FileVersion FileVersion `json:"fileVersion"`
	Contents    string      `json:"contents"`
}

// Type returns the variant tag.
func (Sync) Type() EventType { return EventSync }

// EventVersion returns the buffer version the event describes.
func (e Sync) EventVersion() Version { return e.FileVersion.Version }

// EventPath returns the path the event is addressed to.
func (e Sync) EventPath() string { return e.FileVersion.Path }

// Close notifies the remote that a path is no longer observed. It is
// keyed by path rather than by a live buffer so it can still be routed
// after the buffer object is gone.
type Close struct {
	Path    string  `json:"path"`
	Version Version `json:"version"`
}

// Type returns the variant tag.
func (Close) Type() EventType { return EventClose }

// EventVersion returns the buffer version the event describes.
func (e Close) EventVersion() Version { return e.Version }

// EventPath returns the path the event is addressed to.
func (e Close) EventPath() string { return e.Path }

// Describe returns a short human-readable summary of an event, used in
// log output.
func Describe(ev Event) string {
	return fmt.Sprintf("%s %s@%d", ev.Type(), ev.EventPath(), ev.EventVersion())
}
