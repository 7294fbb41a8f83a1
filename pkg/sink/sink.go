// Package sink renders product matrices as text records and appends them to an output stream
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/samber/lo"
)

// Separator terminates every record
const Separator = "===================="

// Sink receives product matrices in the order they were computed
type Sink interface {
	// Write renders m as one record and makes it visible on the underlying stream
	Write(m matrix.Matrix) error

	// Close flushes and releases the underlying stream
	Close() error
}

// Opener opens a Sink. The consumer calls it once when it starts.
type Opener func() (Sink, error)

// Format renders m as rows of space-separated integers followed by the separator line
func Format(m matrix.Matrix) string {
	var b strings.Builder
	for _, row := range m {
		b.WriteString(formatRow(row))
		b.WriteByte('\n')
	}
	b.WriteString(Separator)
	b.WriteByte('\n')
	return b.String()
}

func formatRow(row []int64) string {
	return strings.Join(lo.Map(row, func(v int64, _ int) string {
		return strconv.FormatInt(v, 10)
	}), " ")
}

// Writer writes records to an io.Writer, flushing after each record
type Writer struct {
	out     *bufio.Writer
	closer  io.Closer
	records int64
}

// NewWriter wraps w. Close flushes w and closes it when it implements io.Closer.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{out: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		sw.closer = c
	}
	return sw
}

// Write appends one record
func (w *Writer) Write(m matrix.Matrix) error {
	if _, err := w.out.WriteString(Format(m)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := w.out.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	atomic.AddInt64(&w.records, 1)
	return nil
}

// Records returns the number of records written
func (w *Writer) Records() int64 {
	return atomic.LoadInt64(&w.records)
}

// Close flushes buffered output and closes the underlying writer if it can be closed
func (w *Writer) Close() error {
	flushErr := w.out.Flush()
	if w.closer != nil {
		if err := w.closer.Close(); err != nil && flushErr == nil {
			return err
		}
	}
	return flushErr
}

// FileOptions controls how the output file is opened
type FileOptions struct {
	// Append keeps existing records instead of truncating the file
	Append bool

	// Perm is used when the file is created
	Perm os.FileMode
}

// OpenFile opens path for record output
func OpenFile(path string, opts FileOptions) (*Writer, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}

	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return NewWriter(f), nil
}

// FileOpener returns an Opener for OpenFile
func FileOpener(path string, opts FileOptions) Opener {
	return func() (Sink, error) {
		return OpenFile(path, opts)
	}
}
