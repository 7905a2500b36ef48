package keybinds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config represents the user's keybinding configuration. Each section maps
// an action name to a comma-separated list of keys, for example
// "toggle_pause": "p,space". Listing an action replaces its default keys
// in that context.
type Config struct {
	Version   string            `json:"version"`
	Global    map[string]string `json:"global,omitempty"`
	Dashboard map[string]string `json:"dashboard,omitempty"`
	Prompt    map[string]string `json:"prompt,omitempty"`
	Search    map[string]string `json:"search,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	Final     map[string]string `json:"final,omitempty"`
}

func (c *Config) sections() map[Context]map[string]string {
	return map[Context]map[string]string{
		ContextGlobal:    c.Global,
		ContextDashboard: c.Dashboard,
		ContextPrompt:    c.Prompt,
		ContextSearch:    c.Search,
		ContextDetail:    c.Detail,
		ContextFinal:     c.Final,
	}
}

// LoadConfig loads keybinding configuration from a JSON or JSONC file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		return nil, fmt.Errorf("invalid keybinds format: %w", err)
	}

	return &config, nil
}

// SaveConfig saves keybinding configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyConfig applies user configuration to a registry.
// User bindings override default bindings.
func ApplyConfig(registry *Registry, config *Config) error {
	for context, bindings := range config.sections() {
		for actionStr, keyList := range bindings {
			action := Action(strings.TrimSpace(actionStr))
			if err := ValidateAction(action); err != nil {
				return fmt.Errorf("%s: %w", context, err)
			}

			keys := splitKeys(keyList)
			for _, key := range keys {
				if err := ValidateKey(key); err != nil {
					return fmt.Errorf("%s.%s: %w", context, action, err)
				}
			}

			registry.Unbind(context, action)
			registry.RegisterMultiple(context, keys, action)
		}
	}
	return nil
}

func splitKeys(list string) []string {
	var keys []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// LoadOrDefault loads user config if it exists, otherwise returns default registry
func LoadOrDefault(configPath string) (*Registry, error) {
	registry := NewDefaultRegistry()
	if configPath == "" {
		return registry, nil
	}

	config, err := LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load keybinds: %w", err)
	}

	if err := ApplyConfig(registry, config); err != nil {
		return nil, fmt.Errorf("failed to apply keybinds config: %w", err)
	}

	result := NewValidator().ValidateRegistry(registry)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid keybinds:\n%s", result.String())
	}

	return registry, nil
}

// ExportDefaults converts a registry into the configuration file form
func ExportDefaults(registry *Registry) *Config {
	config := &Config{Version: "1.0"}
	targets := map[Context]*map[string]string{
		ContextGlobal:    &config.Global,
		ContextDashboard: &config.Dashboard,
		ContextPrompt:    &config.Prompt,
		ContextSearch:    &config.Search,
		ContextDetail:    &config.Detail,
		ContextFinal:     &config.Final,
	}

	for context, target := range targets {
		byAction := make(map[string]string)
		for key, action := range registry.bindings[context] {
			if prev, ok := byAction[string(action)]; ok {
				byAction[string(action)] = prev + "," + key
			} else {
				byAction[string(action)] = key
			}
		}
		if len(byAction) > 0 {
			*target = byAction
		}
	}
	return config
}
