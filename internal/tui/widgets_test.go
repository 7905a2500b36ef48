package tui

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{name: "empty", values: nil, width: 10, want: ""},
		{name: "no width", values: []float64{1, 2}, width: 0, want: ""},
		{name: "scaled to peak", values: []float64{0, 1, 2, 4}, width: 10, want: "▁▃▅█"},
		{name: "keeps newest", values: []float64{9, 2, 3}, width: 2, want: "▆█"},
		{name: "all zero", values: []float64{0, 0}, width: 5, want: "▁▁"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sparkline(tt.values, tt.width); got != tt.want {
				t.Errorf("sparkline() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogHook_MirrorsEntries(t *testing.T) {
	hook := NewLogHook(3)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	logger.WithField("run_id", "abc").Info("replay started")

	lines := hook.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	for _, want := range []string{"INFO", "replay started", "run_id=abc"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestLogHook_KeepsNewestLines(t *testing.T) {
	hook := NewLogHook(3)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	for i := 0; i < 5; i++ {
		logger.Warnf("line %d", i)
	}

	lines := hook.Lines()
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		if !strings.HasSuffix(line, fmt.Sprintf("line %d", i+2)) {
			t.Errorf("lines[%d] = %q, want line %d", i, line, i+2)
		}
		if !strings.Contains(line, "WARN") {
			t.Errorf("lines[%d] = %q, want WARN level", i, line)
		}
	}

	tail := hook.Tail(2)
	if len(tail) != 2 || !strings.HasSuffix(tail[1], "line 4") {
		t.Errorf("Tail(2) = %v", tail)
	}
	if got := hook.Tail(0); got != nil {
		t.Errorf("Tail(0) = %v, want nil", got)
	}
}

func TestFilterBuckets(t *testing.T) {
	rows := bucketSource{
		testBucket("0001", "inventory.items", 10, 0, time.Millisecond),
		testBucket("0002", "billing.invoices", 5, 0, time.Millisecond),
		testBucket("0003", "inventory.stock", 1, 0, time.Millisecond),
	}

	all := filterBuckets(rows, "  ")
	if len(all) != 3 {
		t.Errorf("blank pattern kept %d rows, want 3", len(all))
	}

	got := filterBuckets(rows, "inventory")
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Fingerprint.ID != "0001" || got[1].Fingerprint.ID != "0003" {
		t.Errorf("order not preserved: %s, %s", got[0].Fingerprint.ID, got[1].Fingerprint.ID)
	}

	if none := filterBuckets(rows, "zzz"); len(none) != 0 {
		t.Errorf("got %d rows for unmatched pattern, want 0", len(none))
	}
}

func TestHighlightJSON_FallsBackOnInvalidInput(t *testing.T) {
	if got := highlightJSON("not json"); got != "not json" {
		t.Errorf("highlightJSON() = %q, want input unchanged", got)
	}
	if got := highlightJSON(""); got != "" {
		t.Errorf("highlightJSON(empty) = %q", got)
	}
	if got := highlightJSON(`{"a":1}`); !strings.Contains(got, "a") {
		t.Errorf("highlightJSON() lost content: %q", got)
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{250 * time.Microsecond, "250µs"},
		{1500 * time.Microsecond, "1.5ms"},
		{2 * time.Second, "2.00s"},
	}
	for _, tt := range tests {
		if got := formatLatency(tt.d); got != tt.want {
			t.Errorf("formatLatency(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
