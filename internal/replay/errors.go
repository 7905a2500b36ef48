package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrConcurrencyMisconfiguration rejects a non-positive concurrency limit
	ErrConcurrencyMisconfiguration = errors.New("concurrency must be at least 1")

	// ErrAborted is wrapped by Run when a fault terminated the run
	ErrAborted = errors.New("run aborted")

	// ErrInvalidTransition is returned when an action does not apply to
	// the current state
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// ErrorKind classifies a failed execution
type ErrorKind string

const (
	ErrorNone           ErrorKind = ""
	ErrorTimeout        ErrorKind = "timeout"
	ErrorConnection     ErrorKind = "connection"
	ErrorServerRejected ErrorKind = "serverRejected"
	ErrorOther          ErrorKind = "other"
)

// ErrorKinds lists the failure kinds in display order
var ErrorKinds = []ErrorKind{ErrorTimeout, ErrorConnection, ErrorServerRejected, ErrorOther}

// ExecutionError lets a client state the kind of a failure explicitly
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Classifier maps an execution error to its kind
type Classifier func(err error) ErrorKind

// Classify returns the kind of err. Explicit ExecutionErrors win, then
// context and network error types, then message heuristics.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}

	var ee *ExecutionError
	if errors.As(err, &ee) && ee.Kind != ErrorNone {
		return ee.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorConnection
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH,
			syscall.EHOSTUNREACH, syscall.EPIPE:
			return ErrorConnection
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrorConnection
	}

	return classifyMessage(err.Error())
}

// classifyMessage falls back to the error text for wrapped driver errors
// that do not expose their type
func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"):
		return ErrorTimeout
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "server selection"):
		return ErrorConnection
	case strings.Contains(lower, "(unauthorized)"),
		strings.Contains(lower, "command failed"),
		strings.Contains(lower, "duplicate key"),
		strings.Contains(lower, "not authorized"):
		return ErrorServerRejected
	}
	return ErrorOther
}
