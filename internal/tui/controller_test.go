package tui

import (
	"testing"

	"github.com/studiowebux/mongobar/internal/keybinds"
	"github.com/studiowebux/mongobar/internal/replay"
)

func TestControllerCommandFor(t *testing.T) {
	running := replay.RunSnapshot{State: replay.StateRunning}
	paused := replay.RunSnapshot{State: replay.StatePaused, Paused: true}

	tests := []struct {
		name       string
		controller Controller
		action     keybinds.Action
		run        replay.RunSnapshot
		wantOK     bool
		want       replay.Command
	}{
		{
			name:   "pause a running run",
			action: keybinds.ActionTogglePause,
			run:    running,
			wantOK: true,
			want:   replay.Pause(),
		},
		{
			name:   "resume a paused run",
			action: keybinds.ActionTogglePause,
			run:    paused,
			wantOK: true,
			want:   replay.Resume(),
		},
		{
			name:   "increase defaults to one",
			action: keybinds.ActionIncrease,
			run:    running,
			wantOK: true,
			want:   replay.Increase(1),
		},
		{
			name:       "decrease by configured step",
			controller: Controller{Step: 4},
			action:     keybinds.ActionDecrease,
			run:        running,
			wantOK:     true,
			want:       replay.Decrease(4),
		},
		{
			name:   "abort",
			action: keybinds.ActionAbort,
			run:    running,
			wantOK: true,
			want:   replay.Abort(ReasonAbort),
		},
		{
			name:   "quit aborts",
			action: keybinds.ActionQuit,
			run:    running,
			wantOK: true,
			want:   replay.Abort(ReasonQuit),
		},
		{
			name:   "export to default path",
			action: keybinds.ActionExport,
			run:    running,
			wantOK: true,
			want:   replay.ExportStats(DefaultExportPath),
		},
		{
			name:       "export to configured path",
			controller: Controller{ExportPath: "out/run.json"},
			action:     keybinds.ActionExport,
			run:        running,
			wantOK:     true,
			want:       replay.ExportStats("out/run.json"),
		},
		{
			name:   "view actions send nothing",
			action: keybinds.ActionCycleSort,
			run:    running,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.controller.CommandFor(tt.action, tt.run)
			if ok != tt.wantOK {
				t.Fatalf("CommandFor() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Type != tt.want.Type || got.N != tt.want.N || got.Path != tt.want.Path || got.Reason != tt.want.Reason {
				t.Errorf("CommandFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseConcurrency(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "12", want: 12},
		{input: " 4 ", want: 4},
		{input: "0", want: 0},
		{input: "-3", want: -3},
		{input: "", wantErr: true},
		{input: "many", wantErr: true},
		{input: "2.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseConcurrency(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseConcurrency(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConcurrency(%q) unexpected error: %v", tt.input, err)
			}
			if cmd.Type != replay.CmdSetConcurrency || cmd.N != tt.want {
				t.Errorf("ParseConcurrency(%q) = %+v, want set-concurrency %d", tt.input, cmd, tt.want)
			}
		})
	}
}
