package replay

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle phase of a run
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateDraining
	StateStopped
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:     "idle",
	StateRunning:  "running",
	StatePaused:   "paused",
	StateDraining: "draining",
	StateStopped:  "stopped",
	StateAborted:  "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateStopped || s == StateAborted
}

// RunState is the single mutable record of a run. Fields are read
// lock-free by workers, the dashboard and exporters; only the scheduler's
// control path writes them.
type RunState struct {
	id         string
	state      atomic.Int32
	limit      atomic.Int64
	startedAt  atomic.Int64
	endedAt    atomic.Int64
	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	discarded  atomic.Int64
	inFlight   atomic.Int64

	reasonMu sync.RWMutex
	reason   string
}

func newRunState(id string, limit int) *RunState {
	rs := &RunState{id: id}
	rs.limit.Store(int64(limit))
	return rs
}

// transition moves from one of the allowed states to next
func (r *RunState) transition(next State, from ...State) bool {
	for _, f := range from {
		if r.state.CompareAndSwap(int32(f), int32(next)) {
			return true
		}
	}
	return false
}

func (r *RunState) current() State {
	return State(r.state.Load())
}

func (r *RunState) setReason(reason string) {
	r.reasonMu.Lock()
	defer r.reasonMu.Unlock()
	if r.reason == "" {
		r.reason = reason
	}
}

// RunSnapshot is an immutable copy of the run state
type RunSnapshot struct {
	ID         string
	State      State
	Limit      int
	Paused     bool
	StartedAt  time.Time
	EndedAt    time.Time
	Elapsed    time.Duration
	Dispatched int64
	Completed  int64
	Failed     int64
	Discarded  int64
	InFlight   int64
	Reason     string
}

// Snapshot copies the current run state
func (r *RunState) Snapshot() RunSnapshot {
	r.reasonMu.RLock()
	reason := r.reason
	r.reasonMu.RUnlock()

	state := r.current()
	snap := RunSnapshot{
		ID:         r.id,
		State:      state,
		Limit:      int(r.limit.Load()),
		Paused:     state == StatePaused,
		Dispatched: r.dispatched.Load(),
		Completed:  r.completed.Load(),
		Failed:     r.failed.Load(),
		Discarded:  r.discarded.Load(),
		InFlight:   r.inFlight.Load(),
		Reason:     reason,
	}

	if started := r.startedAt.Load(); started > 0 {
		snap.StartedAt = time.Unix(0, started)
		end := time.Now()
		if ended := r.endedAt.Load(); ended > 0 {
			snap.EndedAt = time.Unix(0, ended)
			end = snap.EndedAt
		}
		snap.Elapsed = end.Sub(snap.StartedAt)
	}
	return snap
}
