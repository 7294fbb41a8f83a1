// Package testutils provides testing utilities shared by the pipeline packages
package testutils

import (
	"errors"
	"strings"
	"sync"

	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/sink"
)

// MemorySink records written matrices in memory
type MemorySink struct {
	mu       sync.Mutex
	written  []matrix.Matrix
	closed   bool
	failAt   int
	writeErr error
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailAt makes the n-th Write (1-based) and every later one return err
func (s *MemorySink) FailAt(n int, err error) *MemorySink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = n
	s.writeErr = err
	return s
}

// Write implements sink.Sink
func (s *MemorySink) Write(m matrix.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("memory sink is closed")
	}
	if s.failAt > 0 && len(s.written)+1 >= s.failAt {
		return s.writeErr
	}
	s.written = append(s.written, m.Clone())
	return nil
}

// Close implements sink.Sink
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Written returns a copy of the matrices written so far
func (s *MemorySink) Written() []matrix.Matrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]matrix.Matrix(nil), s.written...)
}

// Closed reports whether Close was called
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opener returns a sink.Opener that hands out s
func (s *MemorySink) Opener() sink.Opener {
	return func() (sink.Sink, error) {
		return s, nil
	}
}

// SplitRecords splits rendered output into records, without separators
func SplitRecords(output string) []string {
	parts := strings.Split(output, sink.Separator+"\n")
	records := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			records = append(records, p)
		}
	}
	return records
}

// Scalar returns the 1x1 matrix {{v}}
func Scalar(v int64) matrix.Matrix {
	return matrix.Matrix{{v}}
}

// ScalarPair returns a pair whose product is the 1x1 matrix {{v}}
func ScalarPair(id string, v int64) matrix.Pair {
	return matrix.Pair{ID: id, A: Scalar(v), B: Scalar(1)}
}
