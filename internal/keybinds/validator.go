package keybinds

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a keybinding validation error
type ValidationError struct {
	Type    string // "conflict", "invalid", "warning"
	Context Context
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s in context '%s': %s", e.Type, e.Key, e.Context, e.Message)
}

// ValidationResult contains all validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of validation results
func (r *ValidationResult) String() string {
	var sb strings.Builder

	if len(r.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("Errors (%d):\n", len(r.Errors)))
		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("Warnings (%d):\n", len(r.Warnings)))
		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn.Error()))
		}
	}

	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}

	return sb.String()
}

// Validator validates keybinding configurations
type Validator struct {
	// reservedKeys are keys that should not be rebound
	reservedKeys map[string]Action

	// required actions must keep at least one key in their context
	required map[Context][]Action
}

// NewValidator creates a new keybinding validator
func NewValidator() *Validator {
	return &Validator{
		reservedKeys: map[string]Action{
			"ctrl+c": ActionQuitForce,
		},
		required: map[Context][]Action{
			ContextDashboard: {ActionQuit, ActionAbort},
			ContextPrompt:    {ActionSubmit, ActionCancel},
			ContextSearch:    {ActionCancel},
			ContextDetail:    {ActionClose},
			ContextFinal:     {ActionQuit},
		},
	}
}

// ValidateRegistry validates an entire registry
func (v *Validator) ValidateRegistry(registry *Registry) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	v.checkUnknownActions(registry, result)
	v.checkRequiredActions(registry, result)
	v.checkReservedKeys(registry, result)
	v.checkSequencePrefixes(registry, result)
	v.checkShadowing(registry, result)

	return result
}

// ValidateConfig validates a configuration applied over the defaults
func (v *Validator) ValidateConfig(config *Config) *ValidationResult {
	registry := NewDefaultRegistry()
	if err := ApplyConfig(registry, config); err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Type: "invalid", Message: err.Error()}},
		}
	}
	return v.ValidateRegistry(registry)
}

func (v *Validator) checkUnknownActions(registry *Registry, result *ValidationResult) {
	for _, context := range sortedContexts(registry) {
		for _, key := range sortedKeys(registry.bindings[context]) {
			action := registry.bindings[context][key]
			if !IsKnownAction(action) {
				result.Errors = append(result.Errors, ValidationError{
					Type:    "invalid",
					Context: context,
					Key:     key,
					Message: fmt.Sprintf("unknown action %q", action),
				})
			}
		}
	}
}

// checkRequiredActions makes sure every context keeps a way out
func (v *Validator) checkRequiredActions(registry *Registry, result *ValidationResult) {
	for _, context := range Contexts {
		for _, action := range v.required[context] {
			if len(registry.GetBinding(context, action)) == 0 {
				result.Errors = append(result.Errors, ValidationError{
					Type:    "conflict",
					Context: context,
					Message: fmt.Sprintf("action %q has no key", action),
				})
			}
		}
	}
}

// checkReservedKeys checks if any reserved keys have been rebound
func (v *Validator) checkReservedKeys(registry *Registry, result *ValidationResult) {
	for _, context := range sortedContexts(registry) {
		for key, action := range registry.bindings[context] {
			if reserved, ok := v.reservedKeys[key]; ok && action != reserved {
				result.Warnings = append(result.Warnings, ValidationError{
					Type:    "warning",
					Context: context,
					Key:     key,
					Message: "reserved key rebound (may cause issues)",
				})
			}
		}
	}
}

// checkSequencePrefixes flags sequences whose first key is also bound on
// its own, which makes the sequence unreachable
func (v *Validator) checkSequencePrefixes(registry *Registry, result *ValidationResult) {
	for _, context := range sortedContexts(registry) {
		bindings := registry.bindings[context]
		for _, key := range sortedKeys(bindings) {
			if !IsSequence(key) {
				continue
			}
			if action, ok := bindings[key[:1]]; ok {
				result.Errors = append(result.Errors, ValidationError{
					Type:    "conflict",
					Context: context,
					Key:     key,
					Message: fmt.Sprintf("unreachable: %q is bound to %s", key[:1], action),
				})
			}
		}
	}
}

// checkShadowing checks for context-specific bindings that shadow global bindings
func (v *Validator) checkShadowing(registry *Registry, result *ValidationResult) {
	globalBindings := registry.bindings[ContextGlobal]
	if globalBindings == nil {
		return
	}

	for _, context := range sortedContexts(registry) {
		if context == ContextGlobal {
			continue
		}
		for key, action := range registry.bindings[context] {
			if globalAction, ok := globalBindings[key]; ok && action != globalAction {
				result.Warnings = append(result.Warnings, ValidationError{
					Type:    "warning",
					Context: context,
					Key:     key,
					Message: fmt.Sprintf("shadows global binding (%s -> %s)", globalAction, action),
				})
			}
		}
	}
}

func sortedContexts(registry *Registry) []Context {
	contexts := make([]Context, 0, len(registry.bindings))
	for c := range registry.bindings {
		contexts = append(contexts, c)
	}
	sort.Slice(contexts, func(i, j int) bool { return contexts[i] < contexts[j] })
	return contexts
}

func sortedKeys(bindings map[string]Action) []string {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateKey checks if a key string is valid
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	for _, mod := range []string{"ctrl+", "alt+", "shift+", "super+"} {
		if key == mod {
			return fmt.Errorf("modifier without key: %s", key)
		}
	}
	return nil
}

// ValidateAction checks if an action string is valid
func ValidateAction(action Action) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if !IsKnownAction(action) {
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}
