package keybinds

// NewDefaultRegistry creates a registry with all default keybindings
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	registerGlobalBindings(r)
	registerDashboardBindings(r)
	registerPromptBindings(r)
	registerSearchBindings(r)
	registerDetailBindings(r)
	registerFinalBindings(r)

	return r
}

func registerGlobalBindings(r *Registry) {
	r.Register(ContextGlobal, "ctrl+c", ActionQuitForce)
}

func registerNavigationBindings(r *Registry, ctx Context) {
	r.RegisterMultiple(ctx, []string{"up", "k"}, ActionNavigateUp)
	r.RegisterMultiple(ctx, []string{"down", "j"}, ActionNavigateDown)
	r.Register(ctx, "pgup", ActionPageUp)
	r.Register(ctx, "pgdown", ActionPageDown)
	r.RegisterMultiple(ctx, []string{"gg", "home"}, ActionGoToTop)
	r.RegisterMultiple(ctx, []string{"G", "end"}, ActionGoToBottom)
}

func registerDashboardBindings(r *Registry) {
	r.Register(ContextDashboard, "q", ActionQuit)
	r.Register(ContextDashboard, "p", ActionTogglePause)
	r.RegisterMultiple(ContextDashboard, []string{"+", "="}, ActionIncrease)
	r.RegisterMultiple(ContextDashboard, []string{"-", "_"}, ActionDecrease)
	r.Register(ContextDashboard, "c", ActionSetConcurrency)
	r.Register(ContextDashboard, "a", ActionAbort)
	r.Register(ContextDashboard, "e", ActionExport)
	r.Register(ContextDashboard, "s", ActionCycleSort)
	r.Register(ContextDashboard, "/", ActionOpenSearch)
	r.Register(ContextDashboard, "enter", ActionOpenDetail)
	r.Register(ContextDashboard, "y", ActionCopyFingerprint)
	r.Register(ContextDashboard, "l", ActionToggleLogs)
	r.Register(ContextDashboard, "?", ActionToggleHelp)
	registerNavigationBindings(r, ContextDashboard)
}

func registerPromptBindings(r *Registry) {
	r.Register(ContextPrompt, "enter", ActionSubmit)
	r.Register(ContextPrompt, "esc", ActionCancel)
}

func registerSearchBindings(r *Registry) {
	r.Register(ContextSearch, "enter", ActionSubmit)
	r.Register(ContextSearch, "esc", ActionCancel)
	r.RegisterMultiple(ContextSearch, []string{"up", "ctrl+p"}, ActionNavigateUp)
	r.RegisterMultiple(ContextSearch, []string{"down", "ctrl+n"}, ActionNavigateDown)
}

func registerDetailBindings(r *Registry) {
	r.RegisterMultiple(ContextDetail, []string{"esc", "q", "enter"}, ActionClose)
	r.Register(ContextDetail, "y", ActionCopyFingerprint)
	registerNavigationBindings(r, ContextDetail)
}

func registerFinalBindings(r *Registry) {
	r.Register(ContextFinal, "q", ActionQuit)
	r.Register(ContextFinal, "e", ActionExport)
	r.Register(ContextFinal, "s", ActionCycleSort)
	r.Register(ContextFinal, "enter", ActionOpenDetail)
	r.Register(ContextFinal, "y", ActionCopyFingerprint)
	registerNavigationBindings(r, ContextFinal)
}
