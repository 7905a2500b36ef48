package tui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogHook mirrors log entries into a bounded ring for the log panel
type LogHook struct {
	mu    sync.RWMutex
	lines []string
	size  int
}

// NewLogHook creates a hook keeping the last size lines
func NewLogHook(size int) *LogHook {
	if size <= 0 {
		size = LogRingSize
	}
	return &LogHook{size: size, lines: make([]string, 0, size)}
}

// Levels implements logrus.Hook
func (h *LogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook
func (h *LogHook) Fire(entry *logrus.Entry) error {
	line := formatEntry(entry)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lines) == h.size {
		copy(h.lines, h.lines[1:])
		h.lines = h.lines[:len(h.lines)-1]
	}
	h.lines = append(h.lines, line)
	return nil
}

// Lines returns a copy of the ring, oldest first
func (h *LogHook) Lines() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.lines...)
}

// Tail returns at most the last n lines
func (h *LogHook) Tail(n int) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(h.lines) {
		n = len(h.lines)
	}
	return append([]string(nil), h.lines[len(h.lines)-n:]...)
}

func formatEntry(entry *logrus.Entry) string {
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-4s %s", entry.Time.Format("15:04:05"), level, entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}
