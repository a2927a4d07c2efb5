package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/bufsync/internal/buffer"
	"github.com/dshills/bufsync/internal/channel"
	"github.com/dshills/bufsync/internal/protocol"
	"github.com/dshills/bufsync/internal/session"
)

// consumer is a minimal remote replica endpoint: Open and Sync replace
// state, Edit must follow the replica version contiguously, Close
// removes the path.
type consumer struct {
	mu       sync.Mutex
	version  map[string]protocol.Version
	contents map[string]string
	closes   []string
}

func newConsumer() *consumer {
	return &consumer{
		version:  make(map[string]protocol.Version),
		contents: make(map[string]string),
	}
}

func (c *consumer) verdict(ev protocol.Event) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case protocol.Open:
		c.version[e.FileVersion.Path] = e.FileVersion.Version
		c.contents[e.FileVersion.Path] = e.Contents
		return true, ""
	case protocol.Sync:
		c.version[e.FileVersion.Path] = e.FileVersion.Version
		c.contents[e.FileVersion.Path] = e.Contents
		return true, ""
	case protocol.Edit:
		cur, ok := c.version[e.FileVersion.Path]
		if !ok || e.FileVersion.Version != cur+1 {
			return false, "version skew"
		}
		text := c.contents[e.FileVersion.Path]
		if e.OldRange.End > len(text) || text[e.OldRange.Start:e.OldRange.End] != e.OldText {
			return false, "range mismatch"
		}
		c.contents[e.FileVersion.Path] = text[:e.OldRange.Start] + e.NewText + text[e.OldRange.End:]
		c.version[e.FileVersion.Path] = e.FileVersion.Version
		return true, ""
	case protocol.Close:
		c.closes = append(c.closes, e.Path)
		delete(c.version, e.Path)
		delete(c.contents, e.Path)
		return true, ""
	}
	return false, "unsupported"
}

func (c *consumer) snapshot(path string) (string, protocol.Version, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.contents[path]
	return text, c.version[path], ok
}

func (c *consumer) closedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.closes...)
}

func startConsumer(t *testing.T, c *consumer) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			seq, ev, err := DecodeFrame(data)
			if err != nil {
				continue
			}
			ok, reason := c.verdict(ev)
			if err := conn.WriteMessage(websocket.TextMessage, EncodeAck(seq, ok, reason)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitCond(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// Full stack: buffer edits flow through a session and a websocket
// channel to a consumer, ending with identical replica contents.
func TestEndToEnd_EditsReachReplica(t *testing.T) {
	remote := newConsumer()
	url := startConsumer(t, remote)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	reg := channel.NewRegistry()
	defer reg.Close()
	reg.SetHandle(ch)

	buf := buffer.New("/notes.txt", "hello")
	s := session.New(buf, reg, session.WithRetryInterval(10*time.Millisecond))
	defer s.Dispose()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitCond(t, "open not acknowledged", func() bool { return s.ServerVersion() == 0 })

	if err := buf.Apply(buffer.Edit{Range: protocol.NewRange(5, 5), NewText: " world"}); err != nil {
		t.Fatal(err)
	}
	waitCond(t, "edit not acknowledged", func() bool { return s.ServerVersion() == 1 })

	text, v, ok := remote.snapshot("/notes.txt")
	if !ok || text != "hello world" || v != 1 {
		t.Errorf("replica = %q@%d, %v; want \"hello world\"@1", text, v, ok)
	}
}

// Divergence repair: the consumer rejects an out-of-order edit, the
// session resyncs with a full snapshot, and the replica converges on the
// buffer's live state.
func TestEndToEnd_ResyncRepairsDivergence(t *testing.T) {
	remote := newConsumer()
	url := startConsumer(t, remote)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	reg := channel.NewRegistry()
	defer reg.Close()

	buf := buffer.New("/doc.md", "alpha")
	s := session.New(buf, reg, session.WithRetryInterval(10*time.Millisecond))
	defer s.Dispose()

	// Mutate before any channel exists: the edits are dropped, which is
	// exactly the divergence resync must repair later.
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := buf.Apply(buffer.Edit{Range: protocol.NewRange(0, 0), NewText: "x"}); err != nil {
		t.Fatal(err)
	}

	reg.SetHandle(ch)

	// If the pending Open carried the version-0 snapshot, the dropped
	// version-1 edit leaves a gap: the next edit is rejected and a
	// resync must carry the full live text. Either way the replica must
	// converge on the buffer's state at version 2.
	waitCond(t, "open not acknowledged", func() bool { return s.ServerVersion() >= 0 })
	if err := buf.Apply(buffer.Edit{Range: protocol.NewRange(0, 0), NewText: "y"}); err != nil {
		t.Fatal(err)
	}

	waitCond(t, "replica did not converge", func() bool {
		text, v, ok := remote.snapshot("/doc.md")
		return ok && v == 2 && text == buf.Text()
	})
	if s.ServerVersion() != 2 {
		t.Errorf("serverVersion = %d, want 2", s.ServerVersion())
	}
}

// Destroying the buffer delivers the final Close over the wire.
func TestEndToEnd_DestroyClosesReplica(t *testing.T) {
	remote := newConsumer()
	url := startConsumer(t, remote)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	reg := channel.NewRegistry()
	defer reg.Close()
	reg.SetHandle(ch)

	buf := buffer.New("/tmp.txt", "")
	s := session.New(buf, reg, session.WithRetryInterval(10*time.Millisecond))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitCond(t, "open not acknowledged", func() bool { return s.ServerVersion() == 0 })

	buf.Destroy()
	s.Wait()

	waitCond(t, "close not delivered", func() bool {
		return len(remote.closedPaths()) == 1
	})
	if paths := remote.closedPaths(); paths[0] != "/tmp.txt" {
		t.Errorf("closed %v, want [/tmp.txt]", paths)
	}
	if _, _, ok := remote.snapshot("/tmp.txt"); ok {
		t.Error("replica survived close")
	}
}
