/*
Package keybinds provides customizable keyboard binding management for the
dashboard.

Keys map to actions within a context (dashboard, prompt, search, detail,
final). A key bound in a specific context overrides the global binding.
Multi-key sequences such as "gg" are matched with MatchMultiKey.

User overrides live in keybinds.jsonc, one section per context mapping an
action to its comma-separated keys:

	{
	  // comments are allowed
	  "dashboard": {
	    "toggle_pause": "p,space",
	    "abort": "A"
	  }
	}

Listing an action replaces its default keys in that context. The validator
rejects unknown actions, sequences made unreachable by a bound prefix, and
contexts left without a way out (quit, cancel, close). Rebinding ctrl+c
produces a warning.
*/
package keybinds
