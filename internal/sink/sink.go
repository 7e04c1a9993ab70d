// Package sink serializes discovered link pairs to an append-only output.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Header is the first line of every output file.
const Header = "source_url\tlinked_url\n"

// LinkPair is one discovered hyperlink.
type LinkPair struct {
	Source string
	Linked string
}

// Sink accepts groups of pairs. Each group lands contiguously: no line of
// another group is ever written between two lines of the same group.
type Sink interface {
	WriteGroup(ctx context.Context, pairs []LinkPair) error
	Close() error
}

// ErrClosed is the cause of a SinkError returned after Close.
var ErrClosed = errors.New("sink closed")

// SinkError represents an I/O failure while writing output.
type SinkError struct {
	Op    string
	Cause error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: %s: %v", e.Op, e.Cause)
}

func (e *SinkError) Unwrap() error {
	return e.Cause
}

// WriterSink writes tab-separated lines to an io.Writer. A group is
// rendered into a buffer first and committed with one Write under the lock.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	file   *os.File
	closed bool
}

// NewWriterSink wraps w. The caller keeps ownership of w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Create truncates path, writes the header line and returns a sink that
// appends to it. Close syncs and closes the file.
func Create(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &SinkError{Op: "open " + path, Cause: err}
	}
	if _, err := io.WriteString(f, Header); err != nil {
		_ = f.Close()
		return nil, &SinkError{Op: "write header", Cause: err}
	}
	return &WriterSink{w: f, file: f}, nil
}

// WriteGroup appends one line per pair. If ctx is done before the group is
// committed nothing is written.
func (s *WriterSink) WriteGroup(ctx context.Context, pairs []LinkPair) error {
	if len(pairs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, p := range pairs {
		buf.WriteString(p.Source)
		buf.WriteByte('\t')
		buf.WriteString(p.Linked)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &SinkError{Op: "write", Cause: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return &SinkError{Op: "write", Cause: err}
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return &SinkError{Op: "write", Cause: err}
	}
	return nil
}

// Close flushes file-backed sinks to disk. Later writes fail with ErrClosed.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return &SinkError{Op: "sync", Cause: err}
	}
	if err := s.file.Close(); err != nil {
		return &SinkError{Op: "close", Cause: err}
	}
	return nil
}
