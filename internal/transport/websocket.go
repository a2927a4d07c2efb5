package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dshills/bufsync/internal/protocol"
)

// verdict is the remote's answer to one frame.
type verdict struct {
	ok     bool
	reason string
}

// Channel is a websocket-backed remote channel. It satisfies the
// channel.Handle contract: Accept delivers one event and returns nil on
// acknowledgement or an error on rejection.
type Channel struct {
	id   protocol.ChannelID
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex // serializes writes to the connection

	mu      sync.Mutex
	pending map[int64]chan verdict

	nextSeq atomic.Int64
	closed  atomic.Bool
	done    chan struct{}
}

// ChannelOption configures a channel.
type ChannelOption func(*Channel)

// WithLogger sets the channel's logger.
func WithLogger(log zerolog.Logger) ChannelOption {
	return func(c *Channel) { c.log = log }
}

// Dial connects to a sync endpoint and returns a channel bound to the
// new connection. Each successful dial mints a fresh channel ID.
func Dial(ctx context.Context, url string, opts ...ChannelOption) (*Channel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	c := newChannel(conn, opts...)
	go c.readLoop()
	return c, nil
}

// NewServerChannel wraps an already-upgraded connection, for endpoints
// that accept events rather than produce them, and for tests.
func NewServerChannel(conn *websocket.Conn, opts ...ChannelOption) *Channel {
	c := newChannel(conn, opts...)
	go c.readLoop()
	return c
}

func newChannel(conn *websocket.Conn, opts ...ChannelOption) *Channel {
	c := &Channel{
		id:      protocol.ChannelID(uuid.NewString()),
		conn:    conn,
		log:     zerolog.Nop(),
		pending: make(map[int64]chan verdict),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the channel's connection identity.
func (c *Channel) ID() protocol.ChannelID {
	return c.id
}

// Accept delivers one event and waits for the remote's verdict.
func (c *Channel) Accept(ctx context.Context, ev protocol.Event) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	seq := c.nextSeq.Add(1)
	frame, err := EncodeFrame(seq, ev)
	if err != nil {
		return err
	}

	ch := make(chan verdict, 1)
	c.mu.Lock()
	c.pending[seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrChannelClosed
	case v := <-ch:
		if !v.ok {
			if v.reason != "" {
				return fmt.Errorf("%w: %s", ErrRejected, v.reason)
			}
			return ErrRejected
		}
		return nil
	}
}

// readLoop dispatches reply frames to waiting Accept calls.
func (c *Channel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("channel read loop ended")
			c.Close()
			return
		}

		seq, ok, reason, err := DecodeAck(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed reply frame")
			continue
		}

		c.mu.Lock()
		ch, exists := c.pending[seq]
		c.mu.Unlock()
		if !exists {
			c.log.Debug().Int64("seq", seq).Msg("reply for unknown sequence")
			continue
		}

		// A duplicate reply for a sequence already answered must not
		// stall the loop; the waiter's buffer holds exactly one verdict.
		select {
		case ch <- verdict{ok: ok, reason: reason}:
		default:
			c.log.Debug().Int64("seq", seq).Msg("duplicate reply for sequence")
		}
	}
}

// Close tears the connection down. Pending Accept calls fail with
// ErrChannelClosed. Idempotent.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	// Pending waiters are released via done; drop the map so late
	// replies are ignored.
	c.mu.Lock()
	c.pending = make(map[int64]chan verdict)
	c.mu.Unlock()

	return c.conn.Close()
}
