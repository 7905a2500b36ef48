package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
)

// Latencies are recorded in microseconds between LowestLatency and
// HighestLatency with SignificantFigures significant decimal digits. Any
// percentile read from a bucket is therefore within 1% of a latency that
// was actually recorded at that rank. Slower executions are clamped to
// HighestLatency. A histogram holds a fixed ~30KB of counters regardless
// of how many samples it has seen, and histograms merge losslessly.
const (
	LowestLatency      = time.Microsecond
	HighestLatency     = time.Minute
	SignificantFigures = 2
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(int64(LowestLatency/time.Microsecond), int64(HighestLatency/time.Microsecond), SignificantFigures)
}

func toMicros(d time.Duration) int64 {
	us := int64(d / time.Microsecond)
	if us < 1 {
		us = 1
	}
	if max := int64(HighestLatency / time.Microsecond); us > max {
		us = max
	}
	return us
}

func fromMicros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Bucket accumulates the outcomes of one fingerprint. Each bucket has its
// own lock so unrelated fingerprints never contend.
type Bucket struct {
	mu sync.Mutex

	fp        fingerprint.Fingerprint
	namespace string
	kind      operation.Kind
	shape     string
	sample    string

	count    int64
	errors   int64
	errKinds map[replay.ErrorKind]int64
	hist     *hdrhistogram.Histogram
	first    time.Time
	last     time.Time
}

func newBucket(o replay.Outcome) *Bucket {
	b := &Bucket{
		fp:       o.Fingerprint,
		shape:    o.Shape,
		errKinds: make(map[replay.ErrorKind]int64),
		hist:     newHistogram(),
	}
	if o.Op != nil {
		b.namespace = o.Op.Namespace()
		b.kind = o.Op.Kind
		b.sample = o.Op.PayloadJSON()
	}
	return b
}

func (b *Bucket) add(o replay.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if !o.OK() {
		b.errors++
		b.errKinds[o.ErrKind]++
	}
	_ = b.hist.RecordValue(toMicros(o.Duration))

	if b.first.IsZero() || o.Completed.Before(b.first) {
		b.first = o.Completed
	}
	if o.Completed.After(b.last) {
		b.last = o.Completed
	}
}

// view copies the bucket and merges its histogram into rollup
func (b *Bucket) view(rollup *hdrhistogram.Histogram) BucketView {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := BucketView{
		Fingerprint: b.fp,
		Namespace:   b.namespace,
		Kind:        b.kind,
		Shape:       b.shape,
		Sample:      b.sample,
		Count:       b.count,
		Errors:      b.errors,
		ErrorKinds:  make(map[replay.ErrorKind]int64, len(b.errKinds)),
		FirstSeen:   b.first,
		LastSeen:    b.last,
	}
	for k, n := range b.errKinds {
		v.ErrorKinds[k] = n
	}
	fillLatency(&v, b.hist)
	if rollup != nil {
		rollup.Merge(b.hist)
	}
	return v
}

func fillLatency(v *BucketView, h *hdrhistogram.Histogram) {
	if h.TotalCount() == 0 {
		return
	}
	v.P50 = fromMicros(h.ValueAtQuantile(50))
	v.P90 = fromMicros(h.ValueAtQuantile(90))
	v.P99 = fromMicros(h.ValueAtQuantile(99))
	v.Min = fromMicros(h.Min())
	v.Max = fromMicros(h.Max())
	v.Mean = time.Duration(h.Mean() * float64(time.Microsecond))
}
