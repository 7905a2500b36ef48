/*
Package tui implements the live replay dashboard.

# Architecture

The dashboard follows the Bubble Tea framework's Model-Update-View pattern:
  - Model: the last run snapshot, the last statistics view and local UI state
  - Update: processes ticks, scheduler events and key presses
  - View: renders the current state to the terminal

# Key Components

  - controller.go: maps key actions to replay commands
  - model.go: core state, tick/event/done messages
  - keys.go: keyboard input handling per context
  - render.go: view rendering for the dashboard, detail and final frames
  - loghook.go: logrus hook feeding the log panel
  - search.go: fuzzy filtering of the fingerprint table

# Concurrency

The dashboard never calls into the scheduler synchronously. It reads run
state and statistics through snapshot calls on every tick and sends
control commands over the scheduler's non-blocking command queue. A slow
frame therefore delays only the next frame, never dispatch.

Scheduler events and run completion are delivered as tea messages by
commands that wait on the scheduler's channels.
*/
package tui
