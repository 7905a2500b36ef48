package tui

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// highlightJSON pretty prints and colors a JSON payload. Input that is not
// valid JSON is returned unchanged.
func highlightJSON(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ""
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(payload), "", "  "); err != nil {
		return payload
	}

	var out bytes.Buffer
	if err := quick.Highlight(&out, pretty.String(), "json", "terminal256", "monokai"); err != nil {
		return pretty.String()
	}
	return out.String()
}
