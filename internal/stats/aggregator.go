package stats

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/replay"
)

// GlobalID is the fingerprint id of the rollup over all buckets
const GlobalID = "*"

// Aggregator is a concurrent accumulator of outcomes keyed by fingerprint.
// Record may be called from any number of goroutines. Snapshot visits each
// bucket once under that bucket's lock.
type Aggregator struct {
	buckets *xsync.MapOf[string, *Bucket]
	total   atomic.Int64
	failed  atomic.Int64
	// started is the throughput window start in unix nanoseconds; zero
	// until the run starts or the first outcome arrives
	started atomic.Int64
	now     func() time.Time
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an empty aggregator. Its throughput window opens
// with RunStarted, or failing that at the dispatch of the first recorded
// outcome.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		buckets: xsync.NewMapOf[string, *Bucket](),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunStarted opens the throughput window; implements replay.RunObserver
func (a *Aggregator) RunStarted(at time.Time) {
	a.started.Store(at.UnixNano())
}

// Record adds one outcome; implements replay.Recorder
func (a *Aggregator) Record(o replay.Outcome) {
	b, _ := a.buckets.LoadOrCompute(o.Fingerprint.ID, func() *Bucket {
		return newBucket(o)
	})
	b.add(o)

	if a.started.Load() == 0 {
		at := a.now()
		if !o.Completed.IsZero() {
			at = o.Completed.Add(-o.Duration)
		}
		a.started.CompareAndSwap(0, at.UnixNano())
	}

	a.total.Add(1)
	if !o.OK() {
		a.failed.Add(1)
	}
}

// Totals returns the global count and error count without building a view
func (a *Aggregator) Totals() (count, errors int64) {
	return a.total.Load(), a.failed.Load()
}

// Len returns the number of distinct fingerprints seen
func (a *Aggregator) Len() int {
	return a.buckets.Size()
}

// Snapshot returns an immutable view of every bucket plus the global
// rollup. The rollup is derived from the same bucket copies, so its
// counts always equal the sum of the per-fingerprint counts.
func (a *Aggregator) Snapshot() View {
	now := a.now()
	v := View{
		Taken:   now,
		Buckets: make([]BucketView, 0, a.buckets.Size()),
	}
	if started := a.started.Load(); started != 0 {
		v.Elapsed = now.Sub(time.Unix(0, started))
	}

	rollup := newHistogram()
	global := BucketView{
		Fingerprint: fingerprint.Fingerprint{ID: GlobalID, Class: "all"},
		ErrorKinds:  make(map[replay.ErrorKind]int64),
	}

	a.buckets.Range(func(_ string, b *Bucket) bool {
		bv := b.view(rollup)
		v.Buckets = append(v.Buckets, bv)

		global.Count += bv.Count
		global.Errors += bv.Errors
		for k, n := range bv.ErrorKinds {
			global.ErrorKinds[k] += n
		}
		if global.FirstSeen.IsZero() || (!bv.FirstSeen.IsZero() && bv.FirstSeen.Before(global.FirstSeen)) {
			global.FirstSeen = bv.FirstSeen
		}
		if bv.LastSeen.After(global.LastSeen) {
			global.LastSeen = bv.LastSeen
		}
		return true
	})
	fillLatency(&global, rollup)

	secs := v.Elapsed.Seconds()
	if secs > 0 {
		global.Throughput = float64(global.Count) / secs
		for i := range v.Buckets {
			v.Buckets[i].Throughput = float64(v.Buckets[i].Count) / secs
		}
	}
	v.Global = global
	sortBuckets(v.Buckets, SortVolume)
	return v
}
