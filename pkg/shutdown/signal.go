// Package shutdown provides the stop flag shared by the producer, the consumer, and the stop triggers
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Signal is a flag that moves from unset to set exactly once.
// It is safe for concurrent use; pass the same *Signal to every party.
type Signal struct {
	set    atomic.Bool
	once   sync.Once
	done   chan struct{}
	reason atomic.Value // string
}

// New creates an unset Signal
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set raises the signal. Only the first call has an effect; it returns true
// for that call and false for every later one.
func (s *Signal) Set(reason string) bool {
	changed := false
	s.once.Do(func() {
		s.reason.Store(reason)
		s.set.Store(true)
		close(s.done)
		changed = true
	})
	return changed
}

// IsSet reports whether the signal has been raised. It never blocks.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Done returns a channel closed when the signal is raised
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Reason returns the reason given by the call that raised the signal
func (s *Signal) Reason() string {
	if r, ok := s.reason.Load().(string); ok {
		return r
	}
	return ""
}
