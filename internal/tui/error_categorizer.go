package tui

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/trace"
)

// describeErrorKind gives the operator a hint for a failure class shown in
// the detail pane
func describeErrorKind(kind replay.ErrorKind) string {
	switch kind {
	case replay.ErrorTimeout:
		return "Operation exceeded op_timeout - lower concurrency or raise op_timeout"
	case replay.ErrorConnection:
		return "Connection failed - check the uri and that the deployment is reachable"
	case replay.ErrorServerRejected:
		return "Rejected by the server - check permissions, validation rules and duplicate keys"
	case replay.ErrorOther:
		return "Unclassified failure - see the log panel for the driver error"
	}
	return ""
}

// categorizeReason turns the final reason of a run into an actionable line
func categorizeReason(reason string) string {
	if reason == "" {
		return ""
	}

	reasonLower := strings.ToLower(reason)

	// Normal endings
	if reasonLower == "trace complete" {
		return "Trace replayed to the end"
	}
	if reasonLower == ReasonQuit || reasonLower == ReasonAbort {
		return "Run ended by operator"
	}
	if reasonLower == "interrupted" {
		return "Run interrupted by signal"
	}

	// Trace problems
	if strings.Contains(reasonLower, "malformed trace record") {
		return "Malformed trace record - fix the line or replay with strict: false to skip bad records"
	}
	if strings.Contains(reasonLower, "trace read error") {
		return "Trace could not be read - check the trace file or the live capture feed"
	}

	// Connection problems
	if strings.Contains(reasonLower, "server selection") {
		return "No reachable server - check the uri and replica set members"
	}
	if strings.Contains(reasonLower, "no such host") {
		return "DNS resolution failed - verify the hostname in the uri"
	}
	if strings.Contains(reasonLower, "connection refused") {
		return "Connection refused - check that mongod is running and the port is correct"
	}
	if strings.Contains(reasonLower, "authentication failed") ||
		strings.Contains(reasonLower, "unauthorized") {
		return "Authentication failed - check credentials and authSource in the uri"
	}
	if strings.Contains(reasonLower, "deadline exceeded") ||
		strings.Contains(reasonLower, "timeout") {
		return "Timed out - the deployment took too long to respond"
	}

	return "Run aborted: " + reason
}

// categorizeError explains errors returned to the dashboard, such as a
// rejected control command
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, replay.ErrCommandQueueFull):
		return "Command queue full - the scheduler is busy, try again"
	case errors.Is(err, replay.ErrInvalidTransition):
		return "Command not applicable - the run has already ended"
	case errors.Is(err, replay.ErrConcurrencyMisconfiguration):
		return "Concurrency must be at least 1 - limit unchanged"
	case errors.Is(err, operation.ErrMalformedTrace):
		return categorizeReason(err.Error())
	case errors.Is(err, trace.ErrTraceRead):
		return categorizeReason(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out - the deployment took too long to respond"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return categorizeNetError(opErr)
	}

	return err.Error()
}

// categorizeNetError provides specific handling for net.OpError types
func categorizeNetError(e *net.OpError) string {
	if e.Timeout() {
		return "Connection timeout - the deployment took too long to respond"
	}

	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return "Connection refused - check that mongod is running and the port is correct"
		case syscall.ECONNRESET:
			return "Connection reset by server - mongod may have restarted"
		case syscall.ENETUNREACH:
			return "Network unreachable - check network connection and firewall settings"
		case syscall.EHOSTUNREACH:
			return "Host unreachable - check that the deployment is online"
		}
	}

	return e.Error()
}
