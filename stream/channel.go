// Package stream implements the event streaming channel between a running
// workflow and the client connection. The producer side is a bounded FIFO
// queue the workflow emits into; the consumer side is a serialization loop
// that frames events as newline-delimited JSON, interleaves keepalive frames
// while the workflow is quiet, and closes the stream with a single in-band
// sentinel so clients can detect logical end-of-stream independent of
// transport closure.
package stream

import (
	"sync"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// DefaultQueueSize bounds the producer/consumer queue. The workflow blocks on
// Emit when the consumer falls this far behind, which keeps memory bounded
// while preserving strict FIFO order.
const DefaultQueueSize = 64

// Channel is the bounded event queue owned by exactly one request. The
// workflow goroutine emits into it; the connection's serialization loop
// consumes from it. Nothing else is shared between the two.
type Channel struct {
	events chan core.StreamEvent
	done   chan struct{}

	closeOnce sync.Once
}

// NewChannel creates a channel with the given queue capacity. A size of 0
// or below uses DefaultQueueSize.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Channel{
		events: make(chan core.StreamEvent, size),
		done:   make(chan struct{}),
	}
}

// Emit enqueues one event in FIFO order, blocking if the queue is full.
// It reports false once the channel is closed, which a producer can treat as
// a signal that the consumer is gone.
func (c *Channel) Emit(ev core.StreamEvent) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Close marks the channel finished. Safe to call more than once, from
// either side: the producer when the workflow ends, the consumer when it
// stops reading. Events already queued remain readable via TryNext until
// drained.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once Close has been called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Events exposes the consumer side of the queue.
func (c *Channel) Events() <-chan core.StreamEvent {
	return c.events
}

// TryNext returns the next queued event without blocking. It lets the
// consumer drain the queue after Close so no event produced before the close
// is lost.
func (c *Channel) TryNext() (core.StreamEvent, bool) {
	select {
	case ev := <-c.events:
		return ev, true
	default:
		return core.StreamEvent{}, false
	}
}
