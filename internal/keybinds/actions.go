package keybinds

// Action represents a user action that can be triggered by a keybinding
type Action string

// Context represents the context in which keybindings are active
type Context string

const (
	// Contexts define where keybindings are active
	ContextGlobal    Context = "global"    // Available everywhere
	ContextDashboard Context = "dashboard" // Live run view
	ContextPrompt    Context = "prompt"    // Concurrency input popup
	ContextSearch    Context = "search"    // Fingerprint search input
	ContextDetail    Context = "detail"    // Fingerprint detail viewer
	ContextFinal     Context = "final"     // Frame shown after the run ended
)

// Contexts lists every context in display order
var Contexts = []Context{ContextGlobal, ContextDashboard, ContextPrompt, ContextSearch, ContextDetail, ContextFinal}

const (
	// Global actions
	ActionQuit      Action = "quit"       // Abort the run (if any) and exit
	ActionQuitForce Action = "quit_force" // Force quit (ctrl+c)

	// Run control
	ActionTogglePause     Action = "toggle_pause"     // Pause or resume dispatch
	ActionIncrease        Action = "increase"         // Raise the concurrency limit by one step
	ActionDecrease        Action = "decrease"         // Lower the concurrency limit by one step
	ActionSetConcurrency  Action = "set_concurrency"  // Open the concurrency popup
	ActionAbort           Action = "abort"            // Abort the run
	ActionExport          Action = "export"           // Export current statistics
	ActionCycleSort       Action = "cycle_sort"       // Cycle table sort key
	ActionOpenSearch      Action = "open_search"      // Filter fingerprints
	ActionOpenDetail      Action = "open_detail"      // Show selected fingerprint
	ActionCopyFingerprint Action = "copy_fingerprint" // Copy selected fingerprint id and shape
	ActionToggleLogs      Action = "toggle_logs"      // Show or hide the log panel
	ActionToggleHelp      Action = "toggle_help"      // Show full help

	// Navigation
	ActionNavigateUp   Action = "navigate_up"
	ActionNavigateDown Action = "navigate_down"
	ActionPageUp       Action = "page_up"
	ActionPageDown     Action = "page_down"
	ActionGoToTop      Action = "go_to_top"
	ActionGoToBottom   Action = "go_to_bottom"

	// Text input and modals
	ActionSubmit Action = "submit"
	ActionCancel Action = "cancel"
	ActionClose  Action = "close"
)

// ActionInfo contains metadata about an action
type ActionInfo struct {
	Action      Action
	Description string
	Category    string
}

var actionInfos = map[Action]ActionInfo{
	ActionQuit:            {ActionQuit, "quit", "Global"},
	ActionQuitForce:       {ActionQuitForce, "force quit", "Global"},
	ActionTogglePause:     {ActionTogglePause, "pause/resume", "Run"},
	ActionIncrease:        {ActionIncrease, "more workers", "Run"},
	ActionDecrease:        {ActionDecrease, "fewer workers", "Run"},
	ActionSetConcurrency:  {ActionSetConcurrency, "set workers", "Run"},
	ActionAbort:           {ActionAbort, "abort", "Run"},
	ActionExport:          {ActionExport, "export", "Run"},
	ActionCycleSort:       {ActionCycleSort, "sort", "View"},
	ActionOpenSearch:      {ActionOpenSearch, "search", "View"},
	ActionOpenDetail:      {ActionOpenDetail, "detail", "View"},
	ActionCopyFingerprint: {ActionCopyFingerprint, "copy", "View"},
	ActionToggleLogs:      {ActionToggleLogs, "logs", "View"},
	ActionToggleHelp:      {ActionToggleHelp, "help", "View"},
	ActionNavigateUp:      {ActionNavigateUp, "up", "Navigation"},
	ActionNavigateDown:    {ActionNavigateDown, "down", "Navigation"},
	ActionPageUp:          {ActionPageUp, "page up", "Navigation"},
	ActionPageDown:        {ActionPageDown, "page down", "Navigation"},
	ActionGoToTop:         {ActionGoToTop, "top", "Navigation"},
	ActionGoToBottom:      {ActionGoToBottom, "bottom", "Navigation"},
	ActionSubmit:          {ActionSubmit, "apply", "Input"},
	ActionCancel:          {ActionCancel, "cancel", "Input"},
	ActionClose:           {ActionClose, "close", "Input"},
}

// GetActionInfo returns human-readable information about an action
func GetActionInfo(action Action) ActionInfo {
	if info, ok := actionInfos[action]; ok {
		return info
	}
	return ActionInfo{action, string(action), "Unknown"}
}

// IsKnownAction reports whether action is handled by the dashboard
func IsKnownAction(action Action) bool {
	_, ok := actionInfos[action]
	return ok
}
