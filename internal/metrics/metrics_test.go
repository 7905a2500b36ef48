package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

type fixedView stats.View

func (f fixedView) Snapshot() stats.View { return stats.View(f) }

func testView() fixedView {
	return fixedView{
		Global: stats.BucketView{Count: 5, Errors: 1, Mean: time.Millisecond, P50: time.Millisecond, P99: 4 * time.Millisecond},
		Buckets: []stats.BucketView{
			{Fingerprint: fingerprint.Fingerprint{ID: "aaaa", Class: "read.point"}, Count: 3},
			{Fingerprint: fingerprint.Fingerprint{ID: "bbbb", Class: "write.insert"}, Count: 2, Errors: 1},
		},
	}
}

func TestCollectorCount(t *testing.T) {
	c := NewCollector(testView(), func() replay.RunSnapshot {
		return replay.RunSnapshot{Limit: 4, InFlight: 2}
	})
	// two series per bucket, one summary, two gauges
	assert.Equal(t, 7, testutil.CollectAndCount(c))
}

func TestCollectorWithoutRun(t *testing.T) {
	c := NewCollector(testView(), nil)
	assert.Equal(t, 5, testutil.CollectAndCount(c))
}

func TestCollectorValues(t *testing.T) {
	c := NewCollector(testView(), func() replay.RunSnapshot {
		return replay.RunSnapshot{Limit: 4, InFlight: 2}
	})

	expected := `
# HELP mongobar_op_errors_total Failed operations per fingerprint.
# TYPE mongobar_op_errors_total counter
mongobar_op_errors_total{fingerprint="aaaa",shape_class="read.point"} 0
mongobar_op_errors_total{fingerprint="bbbb",shape_class="write.insert"} 1
# HELP mongobar_concurrency_limit Current concurrency limit.
# TYPE mongobar_concurrency_limit gauge
mongobar_concurrency_limit 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"mongobar_op_errors_total", "mongobar_concurrency_limit"))
}
