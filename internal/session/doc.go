// Package session implements the per-buffer synchronization protocol.
//
// A Session observes one versioned buffer and streams Open, Edit, Sync,
// and Close events to its remote channel. It owns the version
// bookkeeping that keeps the remote replica consistent:
//
//   - serverVersion: the highest version the remote has acknowledged.
//   - lastAttemptedSync: the highest version for which a send has been
//     initiated, acknowledged or not. It only increases, and
//     serverVersion never exceeds it.
//
// Channel resolution is asynchronous and may suspend, so every event is
// constructed from a snapshot captured before the suspension point, and
// every recovery attempt re-validates its preconditions after resuming.
// A stale operation degrades to a silent no-op; it never corrupts the
// version bookkeeping.
//
// When a delivery is rejected and the event's path is still current, the
// session repairs divergence by resyncing: sending a full-content Sync
// snapshot at the buffer's live version, retrying on a fixed interval
// until the remote accepts it or the attempt is preempted by a newer
// edit, rename, destroy, or later resync claim.
package session
