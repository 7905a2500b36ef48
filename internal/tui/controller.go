package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/studiowebux/mongobar/internal/keybinds"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// Reasons recorded on the run when the operator ends it
const (
	ReasonQuit  = "quit by operator"
	ReasonAbort = "aborted by operator"
)

// DefaultExportPath is used when no export path is configured
const DefaultExportPath = "mongobar-stats.csv"

// Runner is the part of the replay scheduler the dashboard drives
type Runner interface {
	Send(cmd replay.Command) error
	Snapshot() replay.RunSnapshot
	Events() <-chan replay.Event
	Done() <-chan struct{}
}

// StatsSource provides point-in-time statistics
type StatsSource interface {
	Snapshot() stats.View
}

// skipCounter is implemented by runners whose source drops records
type skipCounter interface {
	Skipped() int64
}

// Controller translates dashboard actions into scheduler commands
type Controller struct {
	Step       int
	ExportPath string
}

// CommandFor returns the command an action sends to the scheduler. The
// second result is false for actions that only affect the dashboard.
func (c Controller) CommandFor(action keybinds.Action, run replay.RunSnapshot) (replay.Command, bool) {
	switch action {
	case keybinds.ActionTogglePause:
		if run.State == replay.StatePaused {
			return replay.Resume(), true
		}
		return replay.Pause(), true
	case keybinds.ActionIncrease:
		return replay.Increase(c.step()), true
	case keybinds.ActionDecrease:
		return replay.Decrease(c.step()), true
	case keybinds.ActionAbort:
		return replay.Abort(ReasonAbort), true
	case keybinds.ActionQuit, keybinds.ActionQuitForce:
		return replay.Abort(ReasonQuit), true
	case keybinds.ActionExport:
		return replay.ExportStats(c.exportPath()), true
	}
	return replay.Command{}, false
}

func (c Controller) step() int {
	if c.Step < 1 {
		return 1
	}
	return c.Step
}

func (c Controller) exportPath() string {
	if c.ExportPath == "" {
		return DefaultExportPath
	}
	return c.ExportPath
}

// ParseConcurrency turns popup input into a set-concurrency command. Range
// checks are left to the scheduler so a rejected value surfaces as a
// misconfiguration warning.
func ParseConcurrency(input string) (replay.Command, error) {
	value := strings.TrimSpace(input)
	n, err := strconv.Atoi(value)
	if err != nil {
		return replay.Command{}, fmt.Errorf("invalid concurrency %q: expected a whole number", value)
	}
	return replay.SetConcurrency(n), nil
}
