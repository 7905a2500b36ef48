package stats

import (
	"sort"
	"time"

	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
)

// BucketView is an immutable copy of one bucket
type BucketView struct {
	Fingerprint fingerprint.Fingerprint
	Namespace   string
	Kind        operation.Kind
	Shape       string
	Sample      string
	Count       int64
	Errors      int64
	ErrorKinds  map[replay.ErrorKind]int64
	P50         time.Duration
	P90         time.Duration
	P99         time.Duration
	Min         time.Duration
	Max         time.Duration
	Mean        time.Duration
	FirstSeen   time.Time
	LastSeen    time.Time
	Throughput  float64
}

// ErrorRate returns the failed fraction in [0, 1]
func (b BucketView) ErrorRate() float64 {
	if b.Count == 0 {
		return 0
	}
	return float64(b.Errors) / float64(b.Count)
}

// View is a point-in-time copy of the aggregator
type View struct {
	Taken   time.Time
	Elapsed time.Duration
	Global  BucketView
	Buckets []BucketView
}

// SortKey orders the per-fingerprint table
type SortKey int

const (
	SortVolume SortKey = iota
	SortErrorRate
	SortLatency
)

func (k SortKey) String() string {
	switch k {
	case SortErrorRate:
		return "error rate"
	case SortLatency:
		return "p99"
	default:
		return "volume"
	}
}

// Next cycles through the sort keys
func (k SortKey) Next() SortKey {
	return (k + 1) % 3
}

// Sorted returns the buckets ordered by key, leaving the view unchanged
func (v View) Sorted(key SortKey) []BucketView {
	out := make([]BucketView, len(v.Buckets))
	copy(out, v.Buckets)
	sortBuckets(out, key)
	return out
}

// Lookup finds a bucket by fingerprint id
func (v View) Lookup(id string) (BucketView, bool) {
	for _, b := range v.Buckets {
		if b.Fingerprint.ID == id {
			return b, true
		}
	}
	return BucketView{}, false
}

func sortBuckets(buckets []BucketView, key SortKey) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		switch key {
		case SortErrorRate:
			if a.ErrorRate() != b.ErrorRate() {
				return a.ErrorRate() > b.ErrorRate()
			}
		case SortLatency:
			if a.P99 != b.P99 {
				return a.P99 > b.P99
			}
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Fingerprint.ID < b.Fingerprint.ID
	})
}
