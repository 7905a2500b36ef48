package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultOpTimeout  = 30 * time.Second
	DefaultAbortGrace = 2 * time.Second

	commandBuffer = 16
	eventBuffer   = 64
)

// ErrCommandQueueFull is returned by Send when the control loop is behind
var ErrCommandQueueFull = errors.New("control command queue is full")

// errAborting stops dispatch once an abort is pending
var errAborting = errors.New("run is aborting")

// Exporter writes the statistics of a run to path
type Exporter interface {
	Export(path string, run RunSnapshot) error
}

// ExporterFunc adapts a function to the Exporter interface
type ExporterFunc func(path string, run RunSnapshot) error

func (f ExporterFunc) Export(path string, run RunSnapshot) error {
	return f(path, run)
}

// Options configures a Scheduler
type Options struct {
	RunID       string
	Concurrency int
	Pacing      Pacing
	// OpTimeout bounds every execution; exceeding it yields a timeout outcome
	OpTimeout time.Duration
	// AbortGrace is how long an abort waits for in-flight executions
	AbortGrace time.Duration
	// FailureThreshold raises a warning after this many consecutive
	// failures; zero disables the warning
	FailureThreshold int
	// MaxRate caps dispatches per second on top of pacing; zero disables it
	MaxRate float64
	// ExportPath, when set, receives a final export at the end of the run
	ExportPath    string
	Exporter      Exporter
	Fingerprinter *fingerprint.Fingerprinter
	Classifier    Classifier
	Logger        *logrus.Entry
}

// Scheduler replays a trace source against a client
type Scheduler struct {
	opts     Options
	src      trace.Source
	client   Client
	recorder Recorder
	log      *logrus.Entry

	run   *RunState
	slots *limiter
	rate  *rate.Limiter

	commands chan Command
	events   chan Event

	pauseMu sync.Mutex
	resumed chan struct{}

	abortOnce  sync.Once
	abortCh    chan struct{}
	abortCause error

	execCtx    context.Context
	execCancel context.CancelFunc
	inflight   sync.WaitGroup
	idleOnce   sync.Once
	idleCh     chan struct{}

	recordMu sync.RWMutex
	closed   bool

	failStreak atomic.Int64
	done       chan struct{}
}

// New creates a scheduler in the Idle state
func New(src trace.Source, client Client, recorder Recorder, opts Options) (*Scheduler, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrConcurrencyMisconfiguration, opts.Concurrency)
	}
	if err := opts.Pacing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pacing: %w", err)
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.AbortGrace <= 0 {
		opts.AbortGrace = DefaultAbortGrace
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Fingerprinter == nil {
		opts.Fingerprinter = fingerprint.New()
	}
	if opts.Classifier == nil {
		opts.Classifier = Classify
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	execCtx, execCancel := context.WithCancel(context.Background())
	resumed := make(chan struct{})
	close(resumed)

	s := &Scheduler{
		opts:       opts,
		src:        src,
		client:     client,
		recorder:   recorder,
		log:        opts.Logger.WithFields(logrus.Fields{"component": "replay", "run_id": opts.RunID}),
		run:        newRunState(opts.RunID, opts.Concurrency),
		slots:      newLimiter(opts.Concurrency),
		commands:   make(chan Command, commandBuffer),
		events:     make(chan Event, eventBuffer),
		resumed:    resumed,
		abortCh:    make(chan struct{}),
		execCtx:    execCtx,
		execCancel: execCancel,
		idleCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	if opts.MaxRate > 0 {
		s.rate = rate.NewLimiter(rate.Limit(opts.MaxRate), 1)
	}
	return s, nil
}

// Run dispatches the whole source and blocks until the run is terminal.
// It returns nil when the trace completes or the operator aborts, and an
// error wrapping ErrAborted when a source fault or ctx ended the run.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.run.transition(StateRunning, StateIdle) {
		return fmt.Errorf("%w: cannot start a %s run", ErrInvalidTransition, s.run.current())
	}
	startedAt := time.Now()
	s.run.startedAt.Store(startedAt.UnixNano())
	if o, ok := s.recorder.(RunObserver); ok {
		o.RunStarted(startedAt)
	}
	s.emit(Event{Type: EventStateChange, State: StateRunning, Message: "run started"})
	s.log.WithFields(logrus.Fields{
		"concurrency": s.opts.Concurrency,
		"pacing":      s.opts.Pacing.Mode,
		"multiplier":  s.opts.Pacing.Multiplier,
	}).Info("Replay started")

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.abortCh:
			cancel()
		case <-dctx.Done():
		}
	}()
	go s.controlLoop()

	err := s.dispatch(dctx)
	switch {
	case s.aborting():
	case err == nil:
		if s.run.transition(StateDraining, StateRunning, StatePaused) {
			s.emit(Event{Type: EventStateChange, State: StateDraining, Message: "trace exhausted, draining"})
			s.log.Info("Trace exhausted, draining in-flight operations")
		}
		select {
		case <-s.idle():
			s.finish(StateStopped, "trace complete")
			return nil
		case <-s.abortCh:
		}
	case ctx.Err() != nil:
		s.abort("interrupted", ctx.Err())
	default:
		s.abort(err.Error(), err)
	}

	s.awaitGrace()
	s.finish(StateAborted, "")
	if s.abortCause != nil {
		return fmt.Errorf("%w: %w", ErrAborted, s.abortCause)
	}
	return nil
}

// Send queues a control command without blocking
func (s *Scheduler) Send(cmd Command) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: run is %s", ErrInvalidTransition, s.run.current())
	default:
	}
	select {
	case s.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Abort ends the run from any non-terminal state, including Idle
func (s *Scheduler) Abort(reason string) {
	if s.run.transition(StateAborted, StateIdle) {
		s.abort(reason, nil)
		s.finish(StateAborted, "")
		return
	}
	if !s.run.current().Terminal() {
		s.abort(reason, nil)
	}
}

// Events delivers state changes and warnings. Events are dropped when
// nobody keeps up with the channel.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Done is closed once the run reaches a terminal state
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns a copy of the run state
func (s *Scheduler) Snapshot() RunSnapshot {
	return s.run.Snapshot()
}

// Skipped returns how many trace records the source dropped
func (s *Scheduler) Skipped() int64 {
	if c, ok := s.src.(trace.Counter); ok {
		return c.Dropped()
	}
	return 0
}

func (s *Scheduler) dispatch(ctx context.Context) error {
	var prevTS, lastDispatch time.Time
	first := true

	for {
		if err := s.waitResumed(ctx); err != nil {
			return err
		}

		op, err := s.src.Next(ctx)
		if errors.Is(err, trace.ErrEndOfTrace) {
			return nil
		}
		if err != nil {
			return err
		}

		if !first {
			gap := s.opts.Pacing.Gap(prevTS, op.Timestamp)
			if wait := gap - time.Since(lastDispatch); wait > 0 {
				if err := sleep(ctx, wait); err != nil {
					return err
				}
			}
		}
		if s.rate != nil {
			if err := s.rate.Wait(ctx); err != nil {
				return err
			}
		}
		if err := s.admit(ctx); err != nil {
			return err
		}

		first = false
		prevTS = op.Timestamp
		lastDispatch = time.Now()

		s.run.dispatched.Add(1)
		s.run.inFlight.Add(1)
		s.inflight.Add(1)
		go s.execute(op)
	}
}

// admit takes a concurrency slot for the next dispatch. A slot obtained
// after the run was paused or aborted is handed back, so an operation
// queued behind a full pool never starts once either command is applied.
func (s *Scheduler) admit(ctx context.Context) error {
	for {
		if err := s.waitResumed(ctx); err != nil {
			return err
		}
		if err := s.slots.Acquire(ctx); err != nil {
			return err
		}
		switch {
		case s.aborting():
			s.slots.Release()
			return errAborting
		case s.run.current() == StatePaused:
			s.slots.Release()
		default:
			return nil
		}
	}
}

func (s *Scheduler) execute(op *operation.Operation) {
	defer s.inflight.Done()

	fp, shape := s.opts.Fingerprinter.Tag(op)
	start := time.Now()
	err := s.call(op)
	elapsed := time.Since(start)

	s.slots.Release()
	s.run.inFlight.Add(-1)

	outcome := Outcome{
		Seq:         op.Seq,
		Fingerprint: fp,
		Shape:       shape,
		Op:          op,
		Duration:    elapsed,
		Completed:   time.Now(),
	}
	if err != nil {
		outcome.Err = err
		outcome.ErrKind = s.opts.Classifier(err)
		if outcome.ErrKind == ErrorNone {
			outcome.ErrKind = ErrorOther
		}
	}
	s.deliver(outcome)
}

// call runs the client under the per-operation timeout. The slot is freed
// when the timeout fires even if the client ignores its context.
func (s *Scheduler) call(op *operation.Operation) error {
	ctx, cancel := context.WithTimeout(s.execCtx, s.opts.OpTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- s.client.Execute(ctx, op)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ExecutionError{Kind: ErrorTimeout, Err: fmt.Errorf("operation exceeded %s", s.opts.OpTimeout)}
		}
		return &ExecutionError{Kind: ErrorOther, Err: errors.New("operation abandoned")}
	}
}

// deliver hands an outcome to the recorder unless the run is terminal
func (s *Scheduler) deliver(o Outcome) {
	s.recordMu.RLock()
	defer s.recordMu.RUnlock()

	if s.closed {
		s.run.discarded.Add(1)
		return
	}

	s.run.completed.Add(1)
	if o.OK() {
		s.failStreak.Store(0)
	} else {
		s.run.failed.Add(1)
		streak := s.failStreak.Add(1)
		if t := s.opts.FailureThreshold; t > 0 && streak == int64(t) {
			msg := fmt.Sprintf("%d consecutive failures, last: %s", streak, o.ErrKind)
			s.emit(Event{Type: EventFailureBurst, State: s.run.current(), Message: msg})
			s.log.WithField("kind", o.ErrKind).Warn(msg)
		}
	}
	s.recorder.Record(o)
}

func (s *Scheduler) controlLoop() {
	for {
		select {
		case cmd := <-s.commands:
			err := s.apply(cmd)
			if err != nil {
				s.log.WithField("command", cmd.Type.String()).WithError(err).Warn("Control command rejected")
			}
			if cmd.Reply != nil {
				select {
				case cmd.Reply <- err:
				default:
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) apply(cmd Command) error {
	step := cmd.N
	if step < 1 {
		step = 1
	}

	switch cmd.Type {
	case CmdPause:
		return s.pause()
	case CmdResume:
		return s.resume()
	case CmdSetConcurrency:
		return s.setLimit(cmd.N)
	case CmdIncrease:
		return s.setLimit(int(s.run.limit.Load()) + step)
	case CmdDecrease:
		return s.setLimit(int(s.run.limit.Load()) - step)
	case CmdAbort:
		reason := cmd.Reason
		if reason == "" {
			reason = "aborted by operator"
		}
		if !s.abort(reason, nil) {
			return fmt.Errorf("%w: run is already aborting", ErrInvalidTransition)
		}
		return nil
	case CmdExport:
		return s.export(cmd.Path)
	default:
		return fmt.Errorf("unknown command %s", cmd.Type)
	}
}

func (s *Scheduler) pause() error {
	if !s.run.transition(StatePaused, StateRunning) {
		return fmt.Errorf("%w: cannot pause a %s run", ErrInvalidTransition, s.run.current())
	}
	s.pauseMu.Lock()
	s.resumed = make(chan struct{})
	s.pauseMu.Unlock()

	s.emit(Event{Type: EventStateChange, State: StatePaused, Message: "paused"})
	s.log.Info("Replay paused")
	return nil
}

func (s *Scheduler) resume() error {
	if !s.run.transition(StateRunning, StatePaused) {
		return fmt.Errorf("%w: cannot resume a %s run", ErrInvalidTransition, s.run.current())
	}
	s.pauseMu.Lock()
	close(s.resumed)
	s.pauseMu.Unlock()

	s.emit(Event{Type: EventStateChange, State: StateRunning, Message: "resumed"})
	s.log.Info("Replay resumed")
	return nil
}

func (s *Scheduler) waitResumed(ctx context.Context) error {
	s.pauseMu.Lock()
	resumed := s.resumed
	s.pauseMu.Unlock()

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) setLimit(n int) error {
	if n < 1 {
		err := fmt.Errorf("%w: got %d, keeping %d", ErrConcurrencyMisconfiguration, n, s.run.limit.Load())
		s.emit(Event{Type: EventMisconfiguration, State: s.run.current(), Message: err.Error()})
		return err
	}
	s.slots.SetLimit(n)
	s.run.limit.Store(int64(n))

	s.emit(Event{Type: EventConcurrency, State: s.run.current(), Message: fmt.Sprintf("concurrency set to %d", n)})
	s.log.WithField("concurrency", n).Info("Concurrency changed")
	return nil
}

func (s *Scheduler) export(path string) error {
	if path == "" {
		path = s.opts.ExportPath
	}
	if path == "" {
		return errors.New("no export path configured")
	}
	if s.opts.Exporter == nil {
		return errors.New("no exporter configured")
	}

	if err := s.opts.Exporter.Export(path, s.run.Snapshot()); err != nil {
		err = fmt.Errorf("failed to export stats: %w", err)
		s.emit(Event{Type: EventExportFailed, State: s.run.current(), Message: err.Error()})
		return err
	}
	s.emit(Event{Type: EventExported, State: s.run.current(), Message: "stats exported to " + path})
	s.log.WithField("path", path).Info("Stats exported")
	return nil
}

// abort records the reason and stops dispatch; the first call wins
func (s *Scheduler) abort(reason string, cause error) bool {
	first := false
	s.abortOnce.Do(func() {
		s.abortCause = cause
		s.run.setReason(reason)
		close(s.abortCh)
		first = true
	})
	if first {
		s.log.WithField("reason", reason).Warn("Replay aborting")
	}
	return first
}

func (s *Scheduler) aborting() bool {
	select {
	case <-s.abortCh:
		return true
	default:
		return false
	}
}

// idle is closed once every dispatched execution has returned. It must
// only be called after dispatch has stopped.
func (s *Scheduler) idle() <-chan struct{} {
	s.idleOnce.Do(func() {
		go func() {
			s.inflight.Wait()
			close(s.idleCh)
		}()
	})
	return s.idleCh
}

func (s *Scheduler) awaitGrace() {
	timer := time.NewTimer(s.opts.AbortGrace)
	defer timer.Stop()

	select {
	case <-s.idle():
	case <-timer.C:
		s.log.WithField("in_flight", s.slots.InFlight()).Warn("Abort grace period elapsed, abandoning in-flight operations")
	}
}

func (s *Scheduler) finish(state State, reason string) {
	s.recordMu.Lock()
	s.closed = true
	s.recordMu.Unlock()

	if reason != "" {
		s.run.setReason(reason)
	}
	s.run.endedAt.Store(time.Now().UnixNano())
	s.run.state.Store(int32(state))
	s.execCancel()

	snap := s.run.Snapshot()
	s.log.WithFields(logrus.Fields{
		"state":      state.String(),
		"reason":     snap.Reason,
		"dispatched": snap.Dispatched,
		"completed":  snap.Completed,
		"failed":     snap.Failed,
		"elapsed":    snap.Elapsed.String(),
	}).Info("Replay finished")

	if s.opts.ExportPath != "" && s.opts.Exporter != nil {
		_ = s.export(s.opts.ExportPath)
	}

	s.emit(Event{Type: EventStateChange, State: state, Message: fmt.Sprintf("%s: %s", state, snap.Reason)})
	close(s.done)
}

func (s *Scheduler) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
