/*
Package replay dispatches trace operations against a database under a
runtime-adjustable concurrency bound.

# Overview

A Scheduler pulls operations from a trace.Source in trace order, waits out
the pacing delay, acquires a concurrency slot and executes the operation
through a Client on its own goroutine. Every dispatched operation yields
exactly one Outcome, which is handed to a Recorder unless the run has
already reached a terminal state.

# Run states

	Idle -> Running -> {Paused <-> Running} -> Draining -> Stopped
	any non-terminal state -> Aborted

Draining is entered when the source reports the end of the trace; the run
stops once in-flight operations complete. Abort stops dispatch at once,
waits at most the configured grace period for in-flight work and then
abandons it. Outcomes that arrive after the run is terminal are discarded.

# Control

Commands (pause, resume, set-concurrency, increase, decrease, abort,
export-stats) are sent over a buffered channel and applied by a single
control goroutine. Rejected commands leave the run unchanged and surface
as events. Lowering the limit never cancels in-flight work; no new
operation is dispatched until the in-flight count is below the new limit.

# Pacing

PacingFast dispatches as soon as a slot is free. PacingTimed reproduces
the gap between consecutive capture timestamps divided by the speed
multiplier, never waiting longer than MaxDelay for a single gap.
*/
package replay
