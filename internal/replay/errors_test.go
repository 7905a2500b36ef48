package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorNone},
		{"explicit kind", &ExecutionError{Kind: ErrorServerRejected, Err: errors.New("x")}, ErrorServerRejected},
		{"wrapped explicit kind", fmt.Errorf("run: %w", &ExecutionError{Kind: ErrorConnection, Err: io.EOF}), ErrorConnection},
		{"deadline", context.DeadlineExceeded, ErrorTimeout},
		{"net timeout", timeoutErr{}, ErrorTimeout},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")}, ErrorConnection},
		{"refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ErrorConnection},
		{"eof", io.ErrUnexpectedEOF, ErrorConnection},
		{"server selection message", errors.New("server selection error: no reachable servers"), ErrorConnection},
		{"duplicate key message", errors.New("E11000 duplicate key error collection"), ErrorServerRejected},
		{"unknown", errors.New("something odd"), ErrorOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestLimiter(t *testing.T) {
	l := newLimiter(2)
	ctx := context.Background()

	assert.NoError(t, l.Acquire(ctx))
	assert.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 2, l.InFlight())

	blocked, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, l.Acquire(blocked), context.Canceled)

	l.SetLimit(1)
	l.Release()
	assert.ErrorIs(t, l.Acquire(blocked), context.Canceled, "one held slot already meets the new limit")

	l.Release()
	assert.NoError(t, l.Acquire(ctx))
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "draining", StateDraining.String())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StatePaused.Terminal())
	assert.Equal(t, "export-stats", CmdExport.String())
}
