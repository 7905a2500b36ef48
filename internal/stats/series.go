package stats

import (
	"sync"
	"time"
)

// SeriesCapacity is the number of samples kept for dashboard charts
const SeriesCapacity = 200

// Point is one chart sample
type Point struct {
	Time       time.Time
	Throughput float64
	P99        time.Duration
	ErrorRate  float64
}

// Series is a bounded ring of chart samples derived from successive views
type Series struct {
	mu        sync.Mutex
	points    []Point
	capacity  int
	lastCount int64
	lastTime  time.Time
}

// NewSeries creates a series holding at most capacity points
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = SeriesCapacity
	}
	return &Series{capacity: capacity, points: make([]Point, 0, capacity)}
}

// Push derives the instantaneous throughput since the previous view and
// appends a point, evicting the oldest when full
func (s *Series) Push(v View) Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Point{Time: v.Taken, P99: v.Global.P99, ErrorRate: v.Global.ErrorRate()}
	if !s.lastTime.IsZero() {
		if dt := v.Taken.Sub(s.lastTime).Seconds(); dt > 0 {
			p.Throughput = float64(v.Global.Count-s.lastCount) / dt
		}
	}
	s.lastCount = v.Global.Count
	s.lastTime = v.Taken

	if len(s.points) == s.capacity {
		copy(s.points, s.points[1:])
		s.points = s.points[:len(s.points)-1]
	}
	s.points = append(s.points, p)
	return p
}

// Points returns a copy of the samples, oldest first
func (s *Series) Points() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Point(nil), s.points...)
}

// Throughputs returns the throughput samples, oldest first
func (s *Series) Throughputs() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Throughput
	}
	return out
}

// Latencies returns the p99 samples in milliseconds, oldest first
func (s *Series) Latencies() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = float64(p.P99) / float64(time.Millisecond)
	}
	return out
}
