package tui

import (
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/studiowebux/mongobar/internal/keybinds"
)

// keyMap adapts the keybinds registry to bubbles/help
type keyMap struct {
	contexts map[keybinds.Context][]key.Binding
	current  keybinds.Context
}

// helpActions lists, per context, the actions shown in the help line
var helpActions = map[keybinds.Context][]keybinds.Action{
	keybinds.ContextDashboard: {
		keybinds.ActionTogglePause, keybinds.ActionIncrease, keybinds.ActionDecrease,
		keybinds.ActionSetConcurrency, keybinds.ActionCycleSort, keybinds.ActionOpenSearch,
		keybinds.ActionOpenDetail, keybinds.ActionExport, keybinds.ActionAbort,
		keybinds.ActionCopyFingerprint, keybinds.ActionToggleLogs, keybinds.ActionToggleHelp,
		keybinds.ActionQuit,
	},
	keybinds.ContextPrompt: {keybinds.ActionSubmit, keybinds.ActionCancel},
	keybinds.ContextSearch: {keybinds.ActionSubmit, keybinds.ActionCancel, keybinds.ActionNavigateUp, keybinds.ActionNavigateDown},
	keybinds.ContextDetail: {keybinds.ActionNavigateUp, keybinds.ActionNavigateDown, keybinds.ActionCopyFingerprint, keybinds.ActionClose},
	keybinds.ContextFinal: {
		keybinds.ActionNavigateUp, keybinds.ActionNavigateDown, keybinds.ActionCycleSort,
		keybinds.ActionOpenDetail, keybinds.ActionExport, keybinds.ActionCopyFingerprint,
		keybinds.ActionQuit,
	},
}

func newKeyMap(registry *keybinds.Registry) keyMap {
	km := keyMap{contexts: make(map[keybinds.Context][]key.Binding), current: keybinds.ContextDashboard}
	for ctx, actions := range helpActions {
		for _, action := range actions {
			keys := registry.GetBinding(ctx, action)
			if len(keys) == 0 {
				continue
			}
			km.contexts[ctx] = append(km.contexts[ctx], key.NewBinding(
				key.WithKeys(keys...),
				key.WithHelp(registry.GetBindingString(ctx, action), keybinds.GetActionInfo(action).Description),
			))
		}
	}
	return km
}

func (k keyMap) in(ctx keybinds.Context) keyMap {
	k.current = ctx
	return k
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return k.contexts[k.current]
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	bindings := k.contexts[k.current]
	var columns [][]key.Binding
	for start := 0; start < len(bindings); start += 4 {
		end := start + 4
		if end > len(bindings) {
			end = len(bindings)
		}
		columns = append(columns, bindings[start:end])
	}
	return columns
}

// keyString normalizes a key press to the registry's spelling
func keyString(msg tea.KeyMsg) string {
	s := msg.String()
	if s == " " {
		return "space"
	}
	return s
}

// handleKeyPress routes key presses based on current mode
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case ModePrompt:
		return m.handlePromptKeys(msg)
	case ModeSearch:
		return m.handleSearchKeys(msg)
	case ModeDetail:
		return m.handleDetailKeys(msg)
	case ModeFinal:
		return m.handleFinalKeys(msg)
	default:
		return m.handleDashboardKeys(msg)
	}
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, partial := m.keybinds.MatchMultiKey(keybinds.ContextDashboard, keyString(msg))
	if partial || !ok {
		return nil
	}

	if m.handleNavigation(action) {
		return nil
	}

	switch action {
	case keybinds.ActionQuitForce:
		return m.forceQuit()

	case keybinds.ActionQuit:
		cmd, _ := m.controller.CommandFor(action, m.run)
		if err := m.opts.Runner.Send(cmd); err != nil {
			return m.setErrorMessage(categorizeError(err))
		}
		m.quitting = true
		return m.setStatusMessage("Stopping run...")

	case keybinds.ActionTogglePause, keybinds.ActionIncrease, keybinds.ActionDecrease,
		keybinds.ActionAbort, keybinds.ActionExport:
		cmd, _ := m.controller.CommandFor(action, m.run)
		return m.send(cmd)

	case keybinds.ActionSetConcurrency:
		m.mode = ModePrompt
		m.prompt.SetValue(strconv.Itoa(m.run.Limit))
		m.prompt.CursorEnd()
		m.prompt.Focus()
		return nil

	case keybinds.ActionOpenSearch:
		m.mode = ModeSearch
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return nil

	default:
		return m.handleViewAction(action)
	}
}

// handleViewAction runs actions shared by the live and final frames
func (m *Model) handleViewAction(action keybinds.Action) tea.Cmd {
	switch action {
	case keybinds.ActionCycleSort:
		m.sortKey = m.sortKey.Next()
		m.applyRows()
		return m.setStatusMessage("Sorted by " + m.sortKey.String())

	case keybinds.ActionOpenDetail:
		row, ok := m.selected()
		if !ok {
			return nil
		}
		m.detailID = row.Fingerprint.ID
		m.mode = ModeDetail
		m.updateDetailContent()
		m.detail.GotoTop()

	case keybinds.ActionCopyFingerprint:
		return m.copySelected()

	case keybinds.ActionToggleLogs:
		if m.opts.Logs != nil {
			m.showLogs = !m.showLogs
			m.clampCursor()
		}

	case keybinds.ActionToggleHelp:
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

func (m *Model) handleFinalKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, partial := m.keybinds.MatchMultiKey(keybinds.ContextFinal, keyString(msg))
	if partial || !ok {
		return nil
	}

	if m.handleNavigation(action) {
		return nil
	}

	switch action {
	case keybinds.ActionQuit, keybinds.ActionQuitForce:
		return tea.Quit
	case keybinds.ActionExport:
		return m.exportFinal()
	default:
		return m.handleViewAction(action)
	}
}

func (m *Model) handlePromptKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextPrompt, keyString(msg))
	if ok {
		switch action {
		case keybinds.ActionQuitForce:
			return m.forceQuit()
		case keybinds.ActionCancel:
			m.closePrompt()
			return nil
		case keybinds.ActionSubmit:
			cmd, err := ParseConcurrency(m.prompt.Value())
			if err != nil {
				return m.setErrorMessage(err.Error())
			}
			m.closePrompt()
			return m.send(cmd)
		}
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

func (m *Model) closePrompt() {
	m.prompt.Blur()
	m.prompt.SetValue("")
	m.mode = m.returnMode()
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextSearch, keyString(msg))
	if ok {
		switch action {
		case keybinds.ActionQuitForce:
			return m.forceQuit()
		case keybinds.ActionSubmit:
			m.search.Blur()
			m.mode = m.returnMode()
			return nil
		case keybinds.ActionCancel:
			m.search.Blur()
			m.search.SetValue("")
			m.filter = ""
			m.applyRows()
			m.mode = m.returnMode()
			return nil
		case keybinds.ActionNavigateUp, keybinds.ActionNavigateDown:
			m.handleNavigation(action)
			return nil
		}
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if value := m.search.Value(); value != m.filter {
		m.filter = value
		m.cursor = 0
		m.offset = 0
		m.applyRows()
	}
	return cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, partial := m.keybinds.MatchMultiKey(keybinds.ContextDetail, keyString(msg))
	if partial || !ok {
		return nil
	}

	switch action {
	case keybinds.ActionQuitForce:
		return m.forceQuit()
	case keybinds.ActionClose:
		m.detailID = ""
		m.mode = m.returnMode()
	case keybinds.ActionCopyFingerprint:
		return m.copySelected()
	case keybinds.ActionNavigateUp:
		m.detail.LineUp(1)
	case keybinds.ActionNavigateDown:
		m.detail.LineDown(1)
	case keybinds.ActionPageUp:
		m.detail.ViewUp()
	case keybinds.ActionPageDown:
		m.detail.ViewDown()
	case keybinds.ActionGoToTop:
		m.detail.GotoTop()
	case keybinds.ActionGoToBottom:
		m.detail.GotoBottom()
	}
	return nil
}

// handleNavigation moves the table cursor; it reports whether the action
// was a navigation action
func (m *Model) handleNavigation(action keybinds.Action) bool {
	page := m.tableHeight()
	switch action {
	case keybinds.ActionNavigateUp:
		m.cursor--
	case keybinds.ActionNavigateDown:
		m.cursor++
	case keybinds.ActionPageUp:
		m.cursor -= page
	case keybinds.ActionPageDown:
		m.cursor += page
	case keybinds.ActionGoToTop:
		m.cursor = 0
	case keybinds.ActionGoToBottom:
		m.cursor = len(m.rows) - 1
	default:
		return false
	}
	m.clampCursor()
	return true
}

// forceQuit aborts a live run and exits without waiting for it to drain
func (m *Model) forceQuit() tea.Cmd {
	if !m.finished {
		cmd, _ := m.controller.CommandFor(keybinds.ActionQuitForce, m.run)
		_ = m.opts.Runner.Send(cmd)
	}
	return tea.Quit
}

// copySelected copies the selected fingerprint's sample payload
func (m *Model) copySelected() tea.Cmd {
	row, ok := m.selectedForCopy()
	if !ok {
		return nil
	}
	text := strings.TrimSpace(row.Sample)
	if text == "" {
		text = row.Shape
	}
	if err := clipboard.WriteAll(text); err != nil {
		return m.setErrorMessage("Failed to copy to clipboard: " + err.Error())
	}
	return m.setStatusMessage("Copied sample of " + row.Fingerprint.ID)
}
