package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// Adaptive color definitions for light/dark terminal support
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#00008b", Dark: "#5f87ff"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}
)

// Style definitions
var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleSelected = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#d3d3d3", Dark: "#3a3a3a"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)

	styleBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(colorYellow).
			Padding(0, 1)

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)
)

var stateStyles = map[replay.State]lipgloss.Style{
	replay.StateIdle:     styleSubtle,
	replay.StateRunning:  styleSuccess,
	replay.StatePaused:   styleWarning,
	replay.StateDraining: lipgloss.NewStyle().Foreground(colorCyan),
	replay.StateStopped:  styleSubtle,
	replay.StateAborted:  styleError,
}

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.mode == ModeDetail {
		return m.renderDetail()
	}

	sections := []string{m.renderHeader()}
	if m.finished {
		sections = append(sections, m.renderFinalReason())
	}
	if m.banner != "" {
		sections = append(sections, styleBanner.Render(truncate("! "+m.banner, m.width-2)))
	}
	sections = append(sections, m.renderCharts())

	switch m.mode {
	case ModePrompt:
		sections = append(sections, m.prompt.View())
	case ModeSearch:
		sections = append(sections, m.search.View())
	default:
		if m.filter != "" {
			sections = append(sections, styleSubtle.Render(fmt.Sprintf("filter: %s (%d match)", m.filter, len(m.rows))))
		}
	}

	sections = append(sections, m.renderTable())
	if m.showLogs && m.opts.Logs != nil {
		sections = append(sections, m.renderLogs())
	}
	sections = append(sections, m.renderStatusBar(), m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader shows the run state and global totals
func (m Model) renderHeader() string {
	run := m.run
	global := m.view.Global

	title := styleTitle.Render("mongobar")
	if m.opts.Version != "" {
		title += styleSubtle.Render(" " + m.opts.Version)
	}
	if m.opts.Trace != "" {
		title += styleSubtle.Render("  " + m.opts.Trace)
	}

	state := stateStyles[run.State].Render(strings.ToUpper(run.State.String()))
	runID := run.ID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	runLine := fmt.Sprintf("%s  run %s  elapsed %s  workers %d  in-flight %d",
		state, runID, run.Elapsed.Round(time.Second), run.Limit, run.InFlight)

	failed := fmt.Sprintf("%d", run.Failed)
	if run.Failed > 0 {
		failed = styleError.Render(failed)
	}
	totals := fmt.Sprintf("dispatched %d  completed %d  failed %s  err %.2f%%  p50 %s  p90 %s  p99 %s  %.1f ops/s",
		run.Dispatched, run.Completed, failed, global.ErrorRate()*100,
		formatLatency(global.P50), formatLatency(global.P90), formatLatency(global.P99), global.Throughput)
	if skipped := m.skipped(); skipped > 0 {
		totals += styleSubtle.Render(fmt.Sprintf("  skipped %d", skipped))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, runLine, totals, "")
}

// renderCharts draws the rolling throughput and p99 sparklines
func (m Model) renderCharts() string {
	width := m.width - ChartLabelWidth
	if width < 10 {
		width = 10
	}
	if width > stats.SeriesCapacity {
		width = stats.SeriesCapacity
	}

	throughput := m.series.Throughputs()
	latency := m.series.Latencies()

	ops := styleSubtle.Render(fmt.Sprintf("%-7s%10.1f ops/s ", "rate", lastValue(throughput))) +
		styleSuccess.Render(sparkline(throughput, width))
	p99 := styleSubtle.Render(fmt.Sprintf("%-7s%10.1f ms    ", "p99", lastValue(latency))) +
		styleWarning.Render(sparkline(latency, width))

	return lipgloss.JoinVertical(lipgloss.Left, ops, p99, "")
}

// renderTable draws the per-fingerprint table
func (m Model) renderTable() string {
	classWidth := m.width - colFingerprint - colKind - colCount - colErrRate - colLatency*3 - colThroughput - 10
	if classWidth < 16 {
		classWidth = 16
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %*s %*s %*s %*s %*s %*s",
		colFingerprint, "FINGERPRINT",
		classWidth, "CLASS / NAMESPACE",
		colKind, "KIND",
		colCount, "COUNT",
		colErrRate, "ERR%",
		colLatency, "P50",
		colLatency, "P90",
		colLatency, "P99",
		colThroughput, "OPS/S",
	)

	var lines []string
	lines = append(lines, styleHeader.Render(header+"  sort: "+m.sortKey.String()))

	if len(m.rows) == 0 {
		empty := "Waiting for operations..."
		if m.filter != "" {
			empty = "No fingerprint matches the filter"
		}
		lines = append(lines, styleSubtle.Render(empty))
		return strings.Join(lines, "\n")
	}

	end := m.offset + m.tableHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}
	for i := m.offset; i < end; i++ {
		b := m.rows[i]
		label := truncate(b.Fingerprint.Class+" "+b.Namespace, classWidth)
		errRate := fmt.Sprintf("%.1f", b.ErrorRate()*100)
		line := fmt.Sprintf("%-*s %-*s %-*s %*d %*s %*s %*s %*s %*.1f",
			colFingerprint, b.Fingerprint.ID,
			classWidth, label,
			colKind, truncate(string(b.Kind), colKind),
			colCount, b.Count,
			colErrRate, errRate,
			colLatency, formatLatency(b.P50),
			colLatency, formatLatency(b.P90),
			colLatency, formatLatency(b.P99),
			colThroughput, b.Throughput,
		)
		switch {
		case i == m.cursor:
			line = styleSelected.Render(line)
		case b.Errors > 0:
			line = styleError.Render(line)
		}
		lines = append(lines, line)
	}

	if len(m.rows) > end-m.offset {
		lines = append(lines, styleSubtle.Render(fmt.Sprintf("%d-%d of %d", m.offset+1, end, len(m.rows))))
	}
	return strings.Join(lines, "\n")
}

// renderLogs draws the boxed log panel
func (m Model) renderLogs() string {
	lines := m.opts.Logs.Tail(LogPanelLines)
	for i, line := range lines {
		lines[i] = truncate(line, m.width-MinimalBorderSize*2)
	}
	for len(lines) < LogPanelLines {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorGray).
		Width(m.width - MinimalBorderSize).
		Render(strings.Join(lines, "\n"))
}

// renderStatusBar shows the last status or error message
func (m Model) renderStatusBar() string {
	switch {
	case m.errorMsg != "":
		return styleError.Render(m.errorMsg)
	case m.statusMsg != "":
		return styleSuccess.Render(m.statusMsg)
	case m.run.State == replay.StatePaused:
		return styleWarning.Render("Paused - dispatch is suspended, in-flight operations finish")
	}
	return ""
}

func (m Model) renderFinalReason() string {
	style := styleSuccess
	if m.run.State == replay.StateAborted {
		style = styleError
	}
	line := fmt.Sprintf("Run %s: %s", m.run.State, m.run.Reason)
	if hint := categorizeReason(m.run.Reason); hint != "" {
		line += styleSubtle.Render("  " + hint)
	}
	return style.Render(line)
}

func (m Model) renderHelp() string {
	return m.help.View(m.keys.in(m.mode.keyContext()))
}

// renderDetail draws the fingerprint detail pane
func (m Model) renderDetail() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(0, 1).
		Render(m.detail.View())
	return lipgloss.JoinVertical(lipgloss.Left, box, m.renderStatusBar(), m.renderHelp())
}
