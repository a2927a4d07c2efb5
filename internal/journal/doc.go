// Package journal persists the highest acknowledged version per path.
//
// The journal is diagnostic state, not protocol state: the in-memory
// session bookkeeping remains the source of truth while a session is
// live. After a restart the journal tells the agent what the remote last
// acknowledged for each path, which is useful for logging and for
// deciding how stale the remote replica may be before the first fresh
// Open re-establishes it.
package journal
