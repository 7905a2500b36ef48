package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// fakeRunner records the commands the dashboard sends
type fakeRunner struct {
	mu      sync.Mutex
	sent    []replay.Command
	snap    replay.RunSnapshot
	sendErr error
	events  chan replay.Event
	done    chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		snap:   replay.RunSnapshot{ID: "0f1e2d3c-run", State: replay.StateRunning, Limit: 8},
		events: make(chan replay.Event, 8),
		done:   make(chan struct{}),
	}
}

func (r *fakeRunner) Send(cmd replay.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func (r *fakeRunner) Snapshot() replay.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *fakeRunner) setState(state replay.State, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.State = state
	r.snap.Paused = state == replay.StatePaused
	r.snap.Reason = reason
}

func (r *fakeRunner) Events() <-chan replay.Event { return r.events }
func (r *fakeRunner) Done() <-chan struct{}       { return r.done }

func (r *fakeRunner) commands() []replay.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]replay.Command(nil), r.sent...)
}

// fakeStats serves a fixed view
type fakeStats struct {
	mu   sync.Mutex
	view stats.View
}

func (s *fakeStats) Snapshot() stats.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *fakeStats) set(v stats.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// testBucket builds a bucket view for table tests
func testBucket(id, ns string, count, errors int64, p99 time.Duration) stats.BucketView {
	return stats.BucketView{
		Fingerprint: fingerprint.Fingerprint{ID: id, Class: "read"},
		Namespace:   ns,
		Kind:        operation.KindFind,
		Shape:       `{"filter":{"sku":"?"}}`,
		Sample:      `{"find":"items","filter":{"sku":"A-1"}}`,
		Count:       count,
		Errors:      errors,
		P99:         p99,
	}
}

func testView(buckets ...stats.BucketView) stats.View {
	var global stats.BucketView
	for _, b := range buckets {
		global.Count += b.Count
		global.Errors += b.Errors
	}
	return stats.View{Taken: time.Now(), Global: global, Buckets: buckets}
}

// CreateTestModel creates a sized Model wired to fakes
func CreateTestModel(t *testing.T, buckets ...stats.BucketView) (*Model, *fakeRunner, *fakeStats) {
	t.Helper()

	runner := newFakeRunner()
	source := &fakeStats{view: testView(buckets...)}

	m, err := New(Options{
		Runner:     runner,
		Stats:      source,
		Logs:       NewLogHook(10),
		Step:       1,
		ExportPath: "stats.csv",
		Trace:      "trace.jsonl",
		Version:    "test-version",
	})
	if err != nil {
		t.Fatalf("Failed to create test model: %v", err)
	}
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return &m, runner, source
}

// press sends a key to the model and returns the resulting command
func press(m *Model, key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

// isQuit reports whether cmd is tea.Quit
func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// AssertModelField is a generic helper for checking model field values
func AssertModelField[T comparable](t *testing.T, fieldName string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", fieldName, got, want)
	}
}
