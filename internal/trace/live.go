package trace

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/studiowebux/mongobar/internal/operation"
)

// LiveSource is an unbounded, non-restartable source fed by a capture
// mechanism through Push. Next blocks while nothing is buffered and
// returns ErrEndOfTrace once the producer closes the source and the
// buffer has drained.
type LiveSource struct {
	ch        chan *operation.Operation
	done      chan struct{}
	closeOnce sync.Once
	err       error
	seq       atomic.Int64
}

// NewLiveSource creates a live source buffering up to buffer operations
func NewLiveSource(buffer int) *LiveSource {
	if buffer < 0 {
		buffer = 0
	}
	return &LiveSource{
		ch:   make(chan *operation.Operation, buffer),
		done: make(chan struct{}),
	}
}

// Push hands an operation to the reader, blocking while the buffer is full
func (s *LiveSource) Push(ctx context.Context, op *operation.Operation) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.ch <- op:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextSeq hands out sequence numbers for operations pushed by producers
func (s *LiveSource) NextSeq() int64 {
	return s.seq.Add(1) - 1
}

func (s *LiveSource) Next(ctx context.Context) (*operation.Operation, error) {
	select {
	case op := <-s.ch:
		return op, nil
	case <-s.done:
		select {
		case op := <-s.ch:
			return op, nil
		default:
			return nil, s.endErr()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CloseWithError ends the source. Readers receive err once the buffer has
// drained, or ErrEndOfTrace if err is nil.
func (s *LiveSource) CloseWithError(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Close signals that the upstream capture has finished
func (s *LiveSource) Close() error {
	s.CloseWithError(nil)
	return nil
}

func (s *LiveSource) endErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrEndOfTrace
}
