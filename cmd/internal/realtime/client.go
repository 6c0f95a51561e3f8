package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"recipebook/cmd/internal/broadcast"
)

// Client is one connected observer.
//
// Send is never closed by the server; done signals the writer to stop. Close is idempotent.
type Client struct {
	ID    string
	Topic string
	Send  chan Envelope

	mu       sync.Mutex
	seq      uint64
	overflow atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(topic string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Client{
		ID:    newClientID(time.Now().UTC()),
		Topic: topic,
		Send:  make(chan Envelope, sendQueueSize),
		done:  make(chan struct{}),
	}
}

// Enqueue stamps a frame with the next sequence number and queues it without blocking.
// A full queue closes the client and returns false: observers never silently miss a snapshot.
func (c *Client) Enqueue(typ string, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(typ, data)
}

func (c *Client) enqueueLocked(typ string, data any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	c.seq++
	env := Envelope{Type: typ, Topic: c.Topic, Seq: c.seq, Data: data}

	select {
	case c.Send <- env:
		return true
	default:
		c.overflow.Store(true)
		c.Close()
		return false
	}
}

// Overflowed reports whether the client was closed because its queue filled up.
func (c *Client) Overflowed() bool { return c.overflow.Load() }

// attach subscribes c to t and queues the state frame. Publications racing with attach wait
// until the state frame is queued, so the first frame is always the state.
func (c *Client) attach(t Topic) *broadcast.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := t.Subscribe(func(data any) { c.Enqueue(TypeSnapshot, data) })
	c.enqueueLocked(TypeState, t.State())
	return sub
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
