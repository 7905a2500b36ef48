package replay

import (
	"context"
	"time"

	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
)

// Client executes one operation against the target database. It must
// honour ctx cancellation; the returned error is classified into an
// ErrorKind and recorded, never propagated as a run failure.
type Client interface {
	Execute(ctx context.Context, op *operation.Operation) error
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, op *operation.Operation) error

func (f ClientFunc) Execute(ctx context.Context, op *operation.Operation) error {
	return f(ctx, op)
}

// Outcome is the result of executing one operation
type Outcome struct {
	Seq         int64
	Fingerprint fingerprint.Fingerprint
	Shape       string
	Op          *operation.Operation
	Duration    time.Duration
	Err         error
	ErrKind     ErrorKind
	Completed   time.Time
}

// OK reports whether the operation succeeded
func (o Outcome) OK() bool {
	return o.ErrKind == ErrorNone
}

// Recorder consumes outcomes. Record is called concurrently from every
// worker.
type Recorder interface {
	Record(o Outcome)
}

// RunObserver is implemented by recorders that need the moment dispatch
// begins, such as throughput windows
type RunObserver interface {
	RunStarted(at time.Time)
}

// RecorderFunc adapts a function to the Recorder interface
type RecorderFunc func(o Outcome)

func (f RecorderFunc) Record(o Outcome) {
	f(o)
}
