package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/bufsync/internal/buffer"
	"github.com/dshills/bufsync/internal/channel"
	"github.com/dshills/bufsync/internal/protocol"
)

// Scenario: an edit raises the version to 1 and the channel rejects it.
// The resync for version 1 is rejected twice, retried on the fixed
// interval, and the third attempt succeeds.
func TestResync_RetriesUntilAccepted(t *testing.T) {
	s, buf, _, h := newTestSession(t, "/a.txt", "foo")

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "open not acknowledged", func() bool { return s.ServerVersion() == 0 })

	var syncAttempts atomic.Int64
	h.setReply(func(ev protocol.Event) error {
		switch ev.Type() {
		case protocol.EventEdit:
			return errRejected
		case protocol.EventSync:
			if syncAttempts.Add(1) < 3 {
				return errRejected
			}
			return nil
		default:
			return nil
		}
	})

	insert(t, buf, 0, "x")

	waitFor(t, "resync did not succeed", func() bool { return s.ServerVersion() == 1 })

	if n := syncAttempts.Load(); n != 3 {
		t.Errorf("sync attempts = %d, want 3", n)
	}
	if s.LastAttempted() != 1 {
		t.Errorf("lastAttempted = %d, want 1", s.LastAttempted())
	}

	// The accepted snapshot carries the full live text.
	var last protocol.Sync
	for _, ev := range h.snapshot() {
		if e, ok := ev.(protocol.Sync); ok {
			last = e
		}
	}
	if last.Contents != "xfoo" {
		t.Errorf("sync contents = %q, want xfoo", last.Contents)
	}
}

// Scenario: while a resync for version 1 is suspended resolving its
// channel, a newer edit is sent and acknowledged. The resumed attempt
// sees the live version has moved on and aborts without sending.
func TestResync_AbortsWhenNewerEditLanded(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry() // no handle: resync suspends resolving
	defer reg.Close()
	s := New(buf, reg, WithRetryInterval(5*time.Millisecond))
	defer s.Dispose()

	insert(t, buf, 0, "a") // version 1
	s.triggerResync()
	if s.LastAttempted() != 1 {
		t.Fatalf("lastAttempted = %d, want claimed 1", s.LastAttempted())
	}

	// A newer edit lands and is acknowledged while the resync suspends.
	insert(t, buf, 0, "b") // version 2
	h := newScriptedHandle("ch-1")
	s.deliver(h, protocol.Edit{
		FileVersion: protocol.FileVersion{Channel: h.ID(), Path: "/a.txt", Version: 2},
	})
	if s.ServerVersion() != 2 || s.LastAttempted() != 2 {
		t.Fatalf("bookkeeping = %d/%d, want 2/2", s.ServerVersion(), s.LastAttempted())
	}

	reg.SetHandle(h) // resync resumes
	s.Wait()

	if h.count(protocol.EventSync) != 0 {
		t.Error("stale resync sent a Sync event")
	}
	if s.ServerVersion() != 2 {
		t.Errorf("serverVersion = %d, want 2", s.ServerVersion())
	}
}

// Preemption: a resync for version 1 suspended before a version-2 resync
// starts must abort without sending once it resumes.
func TestResync_PreemptedByLaterClaim(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry()
	defer reg.Close()
	s := New(buf, reg, WithRetryInterval(5*time.Millisecond))
	defer s.Dispose()

	insert(t, buf, 0, "a") // version 1
	s.triggerResync()      // claims 1, suspends resolving

	insert(t, buf, 0, "b") // version 2
	s.triggerResync()      // claims 2, suspends resolving
	if s.LastAttempted() != 2 {
		t.Fatalf("lastAttempted = %d, want 2", s.LastAttempted())
	}

	h := newScriptedHandle("ch-1")
	reg.SetHandle(h)
	s.Wait()

	syncs := []protocol.Sync{}
	for _, ev := range h.snapshot() {
		if e, ok := ev.(protocol.Sync); ok {
			syncs = append(syncs, e)
		}
	}
	if len(syncs) != 1 {
		t.Fatalf("sent %d sync events, want exactly 1", len(syncs))
	}
	if syncs[0].FileVersion.Version != 2 {
		t.Errorf("sync version = %d, want 2", syncs[0].FileVersion.Version)
	}
	if s.ServerVersion() != 2 {
		t.Errorf("serverVersion = %d, want 2", s.ServerVersion())
	}
}

// No-duplicate-claim: two triggers for the same version produce exactly
// one send attempt. The second claimant sees the version already claimed
// and aborts before doing anything.
func TestResync_DuplicateTriggerAborts(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry()
	defer reg.Close()
	s := New(buf, reg, WithRetryInterval(5*time.Millisecond))
	defer s.Dispose()

	insert(t, buf, 0, "a") // version 1
	s.triggerResync()
	s.triggerResync() // duplicate: aborts at the entry guard

	h := newScriptedHandle("ch-1")
	reg.SetHandle(h)
	s.Wait()

	if n := h.count(protocol.EventSync); n != 1 {
		t.Errorf("sent %d sync events, want 1", n)
	}
	if s.ServerVersion() != 1 {
		t.Errorf("serverVersion = %d, want 1", s.ServerVersion())
	}
}

// A rename during the retry window is a structural precondition failure:
// the loop terminates without sending for the old path.
func TestResync_AbortsOnRename(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry()
	defer reg.Close()
	s := New(buf, reg, WithRetryInterval(5*time.Millisecond))
	defer s.Dispose()

	insert(t, buf, 0, "a")
	s.triggerResync() // suspends resolving

	if err := buf.Rename("/b.txt"); err != nil {
		t.Fatal(err)
	}

	h := newScriptedHandle("ch-1")
	reg.SetHandle(h)
	s.Wait()

	if n := h.count(protocol.EventSync); n != 0 {
		t.Errorf("sent %d sync events for a renamed buffer, want 0", n)
	}
}

// Destroying the buffer while the loop is retrying terminates it.
func TestResync_TerminatesOnDestroy(t *testing.T) {
	s, buf, _, h := newTestSession(t, "/a.txt", "foo")

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "open not acknowledged", func() bool { return s.ServerVersion() == 0 })

	var syncSeen atomic.Bool
	h.setReply(func(ev protocol.Event) error {
		switch ev.Type() {
		case protocol.EventEdit:
			return errRejected
		case protocol.EventSync:
			syncSeen.Store(true)
			return errRejected // never accept: loop must end structurally
		default:
			return nil
		}
	})

	insert(t, buf, 0, "x")
	waitFor(t, "resync never attempted", syncSeen.Load)

	buf.Destroy()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resync loop did not terminate after destroy")
	}

	if s.ServerVersion() != 0 {
		t.Errorf("serverVersion = %d, want 0", s.ServerVersion())
	}
}

// Disposal clears the channel; a suspended resync observes it and
// terminates instead of being force-cancelled.
func TestResync_TerminatesOnDispose(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry()
	defer reg.Close()
	s := New(buf, reg, WithRetryInterval(5*time.Millisecond))

	insert(t, buf, 0, "a")
	s.triggerResync() // suspends resolving; no handle installed

	s.Dispose()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resync loop did not terminate after dispose")
	}
}

func TestResync_PanicsWithoutPath(t *testing.T) {
	buf := buffer.New("/a.txt", "foo")
	reg := channel.NewRegistry()
	defer reg.Close()
	s := New(buf, reg)
	defer s.Dispose()

	insert(t, buf, 0, "a")
	if err := buf.Rename(""); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("resync for a pathless buffer must panic")
		}
	}()
	s.triggerResync()
}
