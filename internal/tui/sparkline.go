package tui

import (
	"math"
	"strings"
)

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the newest width values scaled against their maximum
func sparkline(values []float64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	top := len(sparkTicks) - 1
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(math.Round(v / peak * float64(top)))
		}
		if idx > top {
			idx = top
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

// lastValue returns the newest sample or zero
func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
