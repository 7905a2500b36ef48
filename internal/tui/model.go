package tui

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/studiowebux/mongobar/internal/keybinds"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// Mode represents the current dashboard mode
type Mode int

const (
	ModeDashboard Mode = iota
	ModePrompt
	ModeSearch
	ModeDetail
	ModeFinal
)

// keyContext returns the keybinding context active in a mode
func (m Mode) keyContext() keybinds.Context {
	switch m {
	case ModePrompt:
		return keybinds.ContextPrompt
	case ModeSearch:
		return keybinds.ContextSearch
	case ModeDetail:
		return keybinds.ContextDetail
	case ModeFinal:
		return keybinds.ContextFinal
	default:
		return keybinds.ContextDashboard
	}
}

// Options configures the dashboard
type Options struct {
	Runner   Runner
	Stats    StatsSource
	Keybinds *keybinds.Registry
	// Logs feeds the log panel; nil hides it
	Logs *LogHook
	Tick time.Duration
	Step int
	// ExportPath is the target of the export action
	ExportPath string
	// Export writes statistics once the run has ended and the scheduler no
	// longer accepts commands
	Export  func(path string) error
	Trace   string
	Version string
}

// Model represents the dashboard state
type Model struct {
	opts       Options
	keybinds   *keybinds.Registry
	controller Controller
	series     *stats.Series
	keys       keyMap

	mode   Mode
	width  int
	height int

	run     replay.RunSnapshot
	view    stats.View
	rows    []stats.BucketView
	sortKey stats.SortKey
	filter  string
	cursor  int
	offset  int

	prompt   textinput.Model
	search   textinput.Model
	detail   viewport.Model
	detailID string
	help     help.Model
	showLogs bool

	banner    string
	bannerGen int
	statusMsg string
	errorMsg  string
	statusGen int

	finished bool
	quitting bool
}

// Messages
type tickMsg time.Time

type eventMsg replay.Event

type runDoneMsg struct{}

type exportDoneMsg struct {
	path string
	err  error
}

type clearStatusMsg struct{ gen int }

type clearBannerMsg struct{ gen int }

// New creates a dashboard model
func New(opts Options) (Model, error) {
	if opts.Runner == nil {
		return Model{}, errors.New("dashboard requires a runner")
	}
	if opts.Stats == nil {
		return Model{}, errors.New("dashboard requires a statistics source")
	}
	if opts.Keybinds == nil {
		opts.Keybinds = keybinds.NewDefaultRegistry()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}

	prompt := textinput.New()
	prompt.Prompt = "concurrency: "
	prompt.Placeholder = "workers"
	prompt.CharLimit = 6
	prompt.Width = 8

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "fingerprint, namespace or shape"
	search.CharLimit = 128

	m := Model{
		opts:       opts,
		keybinds:   opts.Keybinds,
		controller: Controller{Step: opts.Step, ExportPath: opts.ExportPath},
		series:     stats.NewSeries(stats.SeriesCapacity),
		keys:       newKeyMap(opts.Keybinds),
		mode:       ModeDashboard,
		prompt:     prompt,
		search:     search,
		detail:     viewport.New(0, 0),
		help:       help.New(),
		showLogs:   opts.Logs != nil,
	}
	m.run = opts.Runner.Snapshot()
	m.view = opts.Stats.Snapshot()
	m.applyRows()
	return m, nil
}

// Init starts the tick loop and the scheduler listeners
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitEvent(), m.waitDone())
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateViewport()

	case tickMsg:
		m.refresh()
		if m.finished {
			return m, nil
		}
		return m, m.tick()

	case eventMsg:
		return m, tea.Batch(m.handleEvent(replay.Event(msg)), m.waitEvent())

	case runDoneMsg:
		m.finished = true
		m.refresh()
		if m.quitting {
			return m, tea.Quit
		}
		if m.mode != ModeDetail {
			m.prompt.Blur()
			m.search.Blur()
			m.mode = ModeFinal
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.setErrorMessage("Export failed: " + msg.err.Error())
		}
		return m, m.setStatusMessage("Stats exported to " + msg.path)

	case clearStatusMsg:
		if msg.gen == m.statusGen {
			m.statusMsg = ""
			m.errorMsg = ""
		}

	case clearBannerMsg:
		if msg.gen == m.bannerGen {
			m.banner = ""
		}
	}

	return m, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitEvent() tea.Cmd {
	events := m.opts.Runner.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m *Model) waitDone() tea.Cmd {
	done := m.opts.Runner.Done()
	return func() tea.Msg {
		<-done
		return runDoneMsg{}
	}
}

// refresh pulls fresh snapshots from the scheduler and the aggregator
func (m *Model) refresh() {
	m.run = m.opts.Runner.Snapshot()
	m.view = m.opts.Stats.Snapshot()
	m.series.Push(m.view)
	m.applyRows()
	if m.mode == ModeDetail {
		m.updateDetailContent()
	}
}

// applyRows sorts and filters the table, keeping the selected fingerprint
// under the cursor when it is still visible
func (m *Model) applyRows() {
	selected := ""
	if row, ok := m.selected(); ok {
		selected = row.Fingerprint.ID
	}

	m.rows = filterBuckets(m.view.Sorted(m.sortKey), m.filter)

	if selected != "" {
		for i, row := range m.rows {
			if row.Fingerprint.ID == selected {
				m.cursor = i
				break
			}
		}
	}
	m.clampCursor()
}

func (m *Model) selected() (stats.BucketView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return stats.BucketView{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.tableHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// handleEvent turns a scheduler event into a banner or a status line
func (m *Model) handleEvent(ev replay.Event) tea.Cmd {
	if ev.Warning() {
		m.bannerGen++
		m.banner = ev.Message
		gen := m.bannerGen
		return tea.Tick(BannerTimeout, func(time.Time) tea.Msg {
			return clearBannerMsg{gen: gen}
		})
	}
	if ev.Message == "" {
		return nil
	}
	return m.setStatusMessage(ev.Message)
}

// send delivers a command to the scheduler without blocking
func (m *Model) send(cmd replay.Command) tea.Cmd {
	if err := m.opts.Runner.Send(cmd); err != nil {
		return m.setErrorMessage(categorizeError(err))
	}
	return nil
}

// exportFinal writes statistics after the run ended
func (m *Model) exportFinal() tea.Cmd {
	if m.opts.Export == nil {
		return m.setErrorMessage("Export is not configured")
	}
	export := m.opts.Export
	path := m.controller.exportPath()
	return func() tea.Msg {
		return exportDoneMsg{path: path, err: export(path)}
	}
}

// returnMode is the mode popups close back to
func (m *Model) returnMode() Mode {
	if m.finished {
		return ModeFinal
	}
	return ModeDashboard
}

func (m *Model) updateViewport() {
	width := m.width - MinimalBorderSize*2
	height := m.height - FooterLines - MinimalBorderSize*2
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	m.detail.Width = width
	m.detail.Height = height
	m.prompt.Width = 8
	m.search.Width = width / 2
	m.clampCursor()
}

// tableHeight is the number of fingerprint rows that fit on screen
func (m *Model) tableHeight() int {
	if m.height == 0 {
		return MinTableRows
	}
	rows := m.height - HeaderLines - ChartLines - FooterLines - TableHeaderLines - MinimalBorderSize
	if m.banner != "" {
		rows--
	}
	if m.finished {
		rows--
	}
	if m.showLogs {
		rows -= LogPanelLines + MinimalBorderSize
	}
	if m.mode == ModePrompt || m.mode == ModeSearch || m.filter != "" {
		rows--
	}
	if rows < MinTableRows {
		rows = MinTableRows
	}
	return rows
}

// skipped returns how many records the source dropped, when known
func (m *Model) skipped() int64 {
	if c, ok := m.opts.Runner.(skipCounter); ok {
		return c.Skipped()
	}
	return 0
}

// Helper methods for setting messages with a timeout
func (m *Model) setStatusMessage(msg string) tea.Cmd {
	m.errorMsg = ""
	m.statusMsg = truncate(msg, MaxStatusWidth)
	return m.clearMessagesLater()
}

func (m *Model) setErrorMessage(msg string) tea.Cmd {
	m.statusMsg = ""
	m.errorMsg = truncate(msg, MaxStatusWidth)
	return m.clearMessagesLater()
}

func (m *Model) clearMessagesLater() tea.Cmd {
	m.statusGen++
	gen := m.statusGen
	return tea.Tick(StatusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{gen: gen}
	})
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
