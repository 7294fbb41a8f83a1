// Package channel provides the FIFO hand-off queue between the producer and the consumer
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/jzx17/matrixpipe/pkg/types"
)

// Option configures a Channel
type Option func(*Channel)

// WithCapacity bounds the number of pending pairs. Zero or less means unbounded.
// The End message is never subject to the bound.
func WithCapacity(n int) Option {
	return func(c *Channel) {
		c.capacity = n
	}
}

// WithClock sets the clock used for receive timeouts
func WithClock(clock types.Clock) Option {
	return func(c *Channel) {
		c.clock = types.ClockOrDefault(clock)
	}
}

// Channel is a FIFO queue of Messages for one producer and one consumer.
// Every message is delivered exactly once; once End is queued no further pair is accepted.
type Channel struct {
	mu       sync.Mutex
	queue    []Message
	pairs    int
	nextSeq  uint64
	sealed   bool
	capacity int

	// ready and space carry at most one pending wake-up each
	ready chan struct{}
	space chan struct{}

	clock types.Clock
}

// New creates an unbounded Channel
func New(opts ...Option) *Channel {
	c := &Channel{
		ready: make(chan struct{}, 1),
		space: make(chan struct{}, 1),
		clock: types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send queues msg. A pair is rejected with ErrChannelSealed after End was queued.
// On a bounded channel Send waits for room until ctx is done; unbounded sends never block.
func (c *Channel) Send(ctx context.Context, msg Message) error {
	if msg.IsEnd() {
		return c.SendEnd()
	}

	for {
		c.mu.Lock()
		if c.sealed {
			c.mu.Unlock()
			return types.ErrChannelSealed
		}
		if c.capacity <= 0 || c.pairs < c.capacity {
			c.pushLocked(msg)
			c.pairs++
			c.mu.Unlock()
			wake(c.ready)
			return nil
		}
		c.mu.Unlock()

		select {
		case <-c.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendEnd queues the End sentinel and seals the channel. A second End returns ErrChannelSealed.
func (c *Channel) SendEnd() error {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		return types.ErrChannelSealed
	}
	c.pushLocked(EndMessage())
	c.sealed = true
	c.mu.Unlock()

	wake(c.ready)
	return nil
}

// Receive returns the oldest message. It waits up to timeout; when nothing
// arrives it returns ok=false and a nil error. A done ctx returns ctx.Err().
func (c *Channel) Receive(ctx context.Context, timeout time.Duration) (Message, bool, error) {
	if msg, ok := c.tryPop(); ok {
		return msg, true, nil
	}
	if timeout <= 0 {
		return Message{}, false, nil
	}

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.ready:
			if msg, ok := c.tryPop(); ok {
				return msg, true, nil
			}
		case <-timer.C():
			// a message may have landed together with the deadline
			if msg, ok := c.tryPop(); ok {
				return msg, true, nil
			}
			return Message{}, false, nil
		case <-ctx.Done():
			return Message{}, false, ctx.Err()
		}
	}
}

// TryReceive returns the oldest message without waiting
func (c *Channel) TryReceive() (Message, bool) {
	return c.tryPop()
}

// Len returns the number of pending messages, End included
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Sealed reports whether End has been queued
func (c *Channel) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}

// Capacity returns the pair bound, zero when unbounded
func (c *Channel) Capacity() int {
	if c.capacity < 0 {
		return 0
	}
	return c.capacity
}

func (c *Channel) pushLocked(msg Message) {
	c.nextSeq++
	msg.Seq = c.nextSeq
	c.queue = append(c.queue, msg)
}

func (c *Channel) tryPop() (Message, bool) {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return Message{}, false
	}
	msg := c.queue[0]
	c.queue[0] = Message{}
	c.queue = c.queue[1:]
	if msg.Kind == KindPair {
		c.pairs--
	}
	c.mu.Unlock()

	if msg.Kind == KindPair {
		wake(c.space)
	}
	return msg, true
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
