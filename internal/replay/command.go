package replay

import "fmt"

// CommandType names a control command
type CommandType int

const (
	CmdPause CommandType = iota
	CmdResume
	CmdSetConcurrency
	CmdIncrease
	CmdDecrease
	CmdAbort
	CmdExport
)

func (c CommandType) String() string {
	switch c {
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdSetConcurrency:
		return "set-concurrency"
	case CmdIncrease:
		return "increase-concurrency"
	case CmdDecrease:
		return "decrease-concurrency"
	case CmdAbort:
		return "abort"
	case CmdExport:
		return "export-stats"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Command is a control message for a running scheduler. Reply, when set,
// receives the result of applying the command; it should be buffered.
type Command struct {
	Type   CommandType
	N      int
	Path   string
	Reason string
	Reply  chan error
}

func Pause() Command  { return Command{Type: CmdPause} }
func Resume() Command { return Command{Type: CmdResume} }

// SetConcurrency sets an absolute concurrency limit
func SetConcurrency(n int) Command { return Command{Type: CmdSetConcurrency, N: n} }

// Increase raises the concurrency limit by step
func Increase(step int) Command { return Command{Type: CmdIncrease, N: step} }

// Decrease lowers the concurrency limit by step
func Decrease(step int) Command { return Command{Type: CmdDecrease, N: step} }

// Abort terminates the run with reason
func Abort(reason string) Command { return Command{Type: CmdAbort, Reason: reason} }

// ExportStats writes the current statistics to path
func ExportStats(path string) Command { return Command{Type: CmdExport, Path: path} }

// WithReply attaches a buffered reply channel to the command
func (c Command) WithReply() Command {
	c.Reply = make(chan error, 1)
	return c
}

// EventType classifies scheduler notifications
type EventType int

const (
	EventStateChange EventType = iota
	EventFailureBurst
	EventMisconfiguration
	EventExported
	EventExportFailed
	EventConcurrency
)

// Event is a notification from the scheduler to its observers
type Event struct {
	Type    EventType
	Message string
	State   State
}

// Warning reports whether the event should be highlighted to the operator
func (e Event) Warning() bool {
	return e.Type == EventFailureBurst || e.Type == EventMisconfiguration || e.Type == EventExportFailed
}
