package keybinds

import (
	"sort"
	"strings"
)

// Binding represents a keybinding mapping
type Binding struct {
	Key     string
	Action  Action
	Context Context
}

// Registry manages keybinding mappings and matching. Register during setup;
// matching is read-only afterwards.
type Registry struct {
	// bindings maps context -> key -> action
	bindings map[Context]map[string]Action

	// pending tracks the first key of a multi-key sequence (like 'gg')
	pending map[Context]string
}

// NewRegistry creates a new keybinding registry
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[Context]map[string]Action),
		pending:  make(map[Context]string),
	}
}

// Register adds a keybinding to the registry
func (r *Registry) Register(context Context, key string, action Action) {
	if r.bindings[context] == nil {
		r.bindings[context] = make(map[string]Action)
	}
	r.bindings[context][key] = action
}

// RegisterMultiple registers multiple keybindings for the same action
func (r *Registry) RegisterMultiple(context Context, keys []string, action Action) {
	for _, key := range keys {
		r.Register(context, key, action)
	}
}

// Unbind removes every key bound to action in context
func (r *Registry) Unbind(context Context, action Action) {
	for key, act := range r.bindings[context] {
		if act == action {
			delete(r.bindings[context], key)
		}
	}
}

// Match attempts to match a key to an action in the given context.
// The specific context is checked before the global one.
func (r *Registry) Match(context Context, key string) (Action, bool) {
	if action, ok := r.bindings[context][key]; ok {
		return action, true
	}
	if action, ok := r.bindings[ContextGlobal][key]; ok {
		return action, true
	}
	return "", false
}

// MatchMultiKey handles multi-key sequences like 'gg'.
// Returns the action, whether it's a complete match, and whether it's a partial match.
func (r *Registry) MatchMultiKey(context Context, key string) (Action, bool, bool) {
	if prev, ok := r.pending[context]; ok {
		delete(r.pending, context)
		action, ok := r.Match(context, prev+key)
		return action, ok, false
	}

	if r.startsSequence(context, key) {
		r.pending[context] = key
		return "", false, true
	}

	action, ok := r.Match(context, key)
	return action, ok, false
}

// startsSequence reports whether key is the unbound prefix of a longer
// plain-key binding in context
func (r *Registry) startsSequence(context Context, key string) bool {
	if _, bound := r.bindings[context][key]; bound {
		return false
	}
	for k := range r.bindings[context] {
		if IsSequence(k) && len(k) > len(key) && strings.HasPrefix(k, key) {
			return true
		}
	}
	return false
}

var namedKeys = map[string]bool{
	"up": true, "down": true, "left": true, "right": true,
	"home": true, "end": true, "pgup": true, "pgdown": true,
	"enter": true, "esc": true, "tab": true, "space": true,
	"backspace": true, "delete": true, "insert": true,
}

// IsSequence reports whether key is a multi-key sequence such as "gg"
// rather than a named key or a modifier combination
func IsSequence(key string) bool {
	if len(key) < 2 || strings.Contains(key, "+") || namedKeys[key] {
		return false
	}
	if key[0] == 'f' && len(key) <= 3 && strings.Trim(key[1:], "0123456789") == "" {
		return false
	}
	return true
}

// ClearMultiKeyState clears any pending multi-key state for a context
func (r *Registry) ClearMultiKeyState(context Context) {
	delete(r.pending, context)
}

// GetBinding returns the keys bound to an action in a context, falling back
// to the global context
func (r *Registry) GetBinding(context Context, action Action) []string {
	keys := keysFor(r.bindings[context], action)
	if len(keys) == 0 {
		keys = keysFor(r.bindings[ContextGlobal], action)
	}
	return keys
}

func keysFor(bindings map[string]Action, action Action) []string {
	var keys []string
	for key, act := range bindings {
		if act == action {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// GetBindingString returns a human-readable string of keys bound to an action
func (r *Registry) GetBindingString(context Context, action Action) string {
	keys := r.GetBinding(context, action)
	if len(keys) == 0 {
		return "unbound"
	}
	return strings.Join(keys, "/")
}

// ListBindings returns the bindings of a context followed by the global
// ones, sorted by key
func (r *Registry) ListBindings(context Context) []Binding {
	var bindings []Binding
	for _, ctx := range []Context{context, ContextGlobal} {
		start := len(bindings)
		for key, action := range r.bindings[ctx] {
			bindings = append(bindings, Binding{Key: key, Action: action, Context: ctx})
		}
		part := bindings[start:]
		sort.Slice(part, func(i, j int) bool { return part[i].Key < part[j].Key })
		if context == ContextGlobal {
			break
		}
	}
	return bindings
}

// HasBinding checks if a key is bound in a context
func (r *Registry) HasBinding(context Context, key string) bool {
	_, ok := r.Match(context, key)
	return ok
}

// Clone creates a deep copy of the registry
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	clone.Merge(r)
	return clone
}

// Merge combines bindings from another registry, with other taking precedence
func (r *Registry) Merge(other *Registry) {
	for context, contextBindings := range other.bindings {
		for key, action := range contextBindings {
			r.Register(context, key, action)
		}
	}
}
