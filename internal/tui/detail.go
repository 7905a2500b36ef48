package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

// detailBucket returns the bucket shown in the detail pane
func (m *Model) detailBucket() (stats.BucketView, bool) {
	if m.detailID == "" {
		return stats.BucketView{}, false
	}
	return m.view.Lookup(m.detailID)
}

func (m *Model) selectedForCopy() (stats.BucketView, bool) {
	if m.mode == ModeDetail {
		return m.detailBucket()
	}
	return m.selected()
}

// updateDetailContent re-renders the detail pane for the open fingerprint
func (m *Model) updateDetailContent() {
	b, ok := m.detailBucket()
	if !ok {
		m.detail.SetContent(styleSubtle.Render("No statistics for this fingerprint yet"))
		return
	}
	m.detail.SetContent(renderBucketDetail(b))
}

func renderBucketDetail(b stats.BucketView) string {
	var s strings.Builder

	field := func(name, value string) {
		s.WriteString(styleSubtle.Render(fmt.Sprintf("%-12s", name)))
		s.WriteString(value)
		s.WriteString("\n")
	}

	s.WriteString(styleTitle.Render("Fingerprint " + b.Fingerprint.ID))
	s.WriteString("\n\n")
	field("class", b.Fingerprint.Class)
	field("namespace", b.Namespace)
	field("kind", string(b.Kind))
	field("count", fmt.Sprintf("%d", b.Count))
	field("throughput", fmt.Sprintf("%.1f ops/s", b.Throughput))
	field("first seen", formatTime(b.FirstSeen))
	field("last seen", formatTime(b.LastSeen))

	s.WriteString("\n")
	s.WriteString(styleTitle.Render("Latency"))
	s.WriteString("\n")
	field("min", formatLatency(b.Min))
	field("mean", formatLatency(b.Mean))
	field("p50", formatLatency(b.P50))
	field("p90", formatLatency(b.P90))
	field("p99", formatLatency(b.P99))
	field("max", formatLatency(b.Max))

	s.WriteString("\n")
	s.WriteString(styleTitle.Render("Errors"))
	s.WriteString("\n")
	if b.Errors == 0 {
		s.WriteString(styleSuccess.Render("none"))
		s.WriteString("\n")
	} else {
		field("total", fmt.Sprintf("%d (%.1f%%)", b.Errors, b.ErrorRate()*100))
		for _, kind := range replay.ErrorKinds {
			n := b.ErrorKinds[kind]
			if n == 0 {
				continue
			}
			field(string(kind), styleError.Render(fmt.Sprintf("%d", n)))
			s.WriteString(styleSubtle.Render("            " + describeErrorKind(kind)))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(styleTitle.Render("Shape"))
	s.WriteString("\n")
	s.WriteString(highlightJSON(b.Shape))
	s.WriteString("\n\n")
	s.WriteString(styleTitle.Render("Sample"))
	s.WriteString("\n")
	s.WriteString(highlightJSON(b.Sample))
	s.WriteString("\n")

	return s.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05.000")
}

// formatLatency prints a duration in the most readable unit
func formatLatency(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
