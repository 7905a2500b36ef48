package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/studiowebux/mongobar/internal/operation"
)

var (
	// ErrEndOfTrace is returned by Next once the source is exhausted
	ErrEndOfTrace = errors.New("end of trace")

	// ErrTraceRead is matched by every I/O failure while reading a trace
	ErrTraceRead = errors.New("trace read error")

	// ErrClosed is returned when pushing into a closed live source
	ErrClosed = errors.New("trace source closed")
)

// ReadError wraps an I/O failure of a trace source
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read trace %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTraceRead) true for any ReadError
func (e *ReadError) Is(target error) bool {
	return target == ErrTraceRead
}

// Source is an ordered supply of operations. Next blocks until an
// operation is available, the source ends (ErrEndOfTrace) or ctx is done.
// Next is not safe for concurrent use; the scheduler is its only reader.
type Source interface {
	Next(ctx context.Context) (*operation.Operation, error)
	Close() error
}

// Restartable is a source that can be rewound to its first operation
type Restartable interface {
	Source
	Reset() error
}

// Counter is implemented by sources that drop records, such as filters
// and lenient file sources
type Counter interface {
	Dropped() int64
}

// SliceSource replays an in-memory list of operations
type SliceSource struct {
	ops []*operation.Operation
	pos int
}

// FromSlice creates a restartable source over ops
func FromSlice(ops []*operation.Operation) *SliceSource {
	return &SliceSource{ops: ops}
}

func (s *SliceSource) Next(ctx context.Context) (*operation.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.ops) {
		return nil, ErrEndOfTrace
	}
	op := s.ops[s.pos]
	s.pos++
	return op, nil
}

func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

func (s *SliceSource) Close() error {
	return nil
}
