package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
)

// DefaultIdleInterval bounds how long a tick waits for a message when
// there is nothing to solve
const DefaultIdleInterval = 100 * time.Millisecond

// ErrDisconnected is returned once the worker's control channel has been
// closed. It is terminal.
var ErrDisconnected = errors.New("control channel disconnected")

// State is the observable run state of a worker
type State int

const (
	StateStopped State = iota
	StateRunningNoWork
	StateRunningSolving
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunningNoWork:
		return "running-no-work"
	case StateRunningSolving:
		return "running-solving"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SealPublisher forwards found seals downstream. It must be safe to
// share between workers.
type SealPublisher interface {
	Publish(seal types.Seal) error
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Worker
type Option func(w *Worker)

// WithStatus sets the status sink reports are written to
func WithStatus(sink StatusSink) Option {
	return func(w *Worker) { w.status = sink }
}

// WithClock replaces the wall clock used for report windows
func WithClock(c Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithReportInterval sets the minimum time between reports
func WithReportInterval(d time.Duration) Option {
	return func(w *Worker) { w.reportInterval = d }
}

// WithIdleInterval sets the idle wait used while there is nothing to solve
func WithIdleInterval(d time.Duration) Option {
	return func(w *Worker) { w.idleInterval = d }
}

// WithReportHook registers a callback invoked with every report
func WithReportHook(fn func(Report)) Option {
	return func(w *Worker) { w.onReport = fn }
}

// Worker drives a solver in a loop while applying control messages from
// its inbox. All of its state is owned by the goroutine calling Tick or
// Run.
type Worker struct {
	id     int
	solver solver.Solver
	inbox  <-chan types.ControlMessage
	seals  SealPublisher
	status StatusSink
	log    logger.Logger
	clock  Clock

	reportInterval time.Duration
	idleInterval   time.Duration
	onReport       func(Report)

	running         bool
	disconnected    bool
	work            *types.WorkItem
	pending         *types.ControlMessage
	candidatesFound uint64
	reporter        *Reporter
}

// New creates a worker. The worker starts enabled with no work; it does
// not solve until a NewWork message arrives.
func New(id int, s solver.Solver, inbox <-chan types.ControlMessage, seals SealPublisher, log logger.Logger, opts ...Option) *Worker {
	w := &Worker{
		id:             id,
		solver:         s,
		inbox:          inbox,
		seals:          seals,
		log:            log,
		clock:          systemClock{},
		reportInterval: DefaultReportInterval,
		idleInterval:   DefaultIdleInterval,
		running:        true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.idleInterval <= 0 {
		w.idleInterval = DefaultIdleInterval
	}

	w.reporter = NewReporter(id, s.Arch(), w.reportInterval, w.status, w.clock.Now())
	w.reporter.hook = w.onReport
	return w
}

// ID returns the worker's index
func (w *Worker) ID() int {
	return w.id
}

// Arch returns the architecture of the worker's solver
func (w *Worker) Arch() types.Arch {
	return w.solver.Arch()
}

// CandidatesFound returns the number of non-zero nonces seen so far
func (w *Worker) CandidatesFound() uint64 {
	return w.candidatesFound
}

// Work returns the current work item, or nil
func (w *Worker) Work() *types.WorkItem {
	return w.work
}

// State returns the current run state
func (w *Worker) State() State {
	switch {
	case w.disconnected:
		return StateDisconnected
	case !w.running:
		return StateStopped
	case w.work == nil:
		return StateRunningNoWork
	default:
		return StateRunningSolving
	}
}

// Run calls Tick until ctx is done or the control channel disconnects.
// It returns nil on cancellation and ErrDisconnected on disconnection.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker started", "ID", w.id, "Arch", w.Arch().String(), "Solver", w.solver.Name())
	for ctx.Err() == nil {
		err := w.Tick(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrDisconnected) {
			w.log.Warn("Control channel disconnected; worker exiting",
				"ID", w.id, "SealsFound", w.candidatesFound)
			return err
		}
		if ctx.Err() != nil {
			break
		}
		return err
	}
	w.log.Info("Worker stopped", "ID", w.id, "SealsFound", w.candidatesFound)
	return nil
}

// Tick runs one iteration of the control loop: apply at most one pending
// message, then either idle or make exactly one solve call.
func (w *Worker) Tick(ctx context.Context) error {
	if w.disconnected {
		return ErrDisconnected
	}
	if err := w.poll(); err != nil {
		return err
	}

	if !w.running || w.work == nil {
		w.reporter.Reset(w.clock.Now())
		return w.idle(ctx)
	}

	// The call runs to completion against the work current at its start
	work := w.work
	nonce, units := w.solver.Solve(work.PowHash, work.Target.Bytes32())
	w.reporter.Add(units)

	if !nonce.IsZero() {
		w.publish(types.Seal{PowHash: work.PowHash, Nonce: nonce})
	}

	w.reporter.MaybeReport(w.clock.Now(), w.candidatesFound)
	return nil
}

// poll applies the pending message, or at most one message from the
// inbox, without blocking.
func (w *Worker) poll() error {
	if w.pending != nil {
		msg := *w.pending
		w.pending = nil
		w.apply(msg)
		return nil
	}

	select {
	case msg, ok := <-w.inbox:
		if !ok {
			return w.disconnect()
		}
		w.apply(msg)
	default:
	}
	return nil
}

// idle waits for the idle interval, waking early when a message arrives.
// The message is kept for the next tick's poll.
func (w *Worker) idle(ctx context.Context) error {
	timer := time.NewTimer(w.idleInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case msg, ok := <-w.inbox:
		if !ok {
			return w.disconnect()
		}
		w.pending = &msg
	}
	return nil
}

func (w *Worker) apply(msg types.ControlMessage) {
	switch msg.Kind {
	case types.MsgNewWork:
		if msg.Work == nil {
			w.log.Warn("Ignoring new work message without work", "ID", w.id)
			return
		}
		work := *msg.Work
		w.work = &work
		w.log.Debug("Received new work", "ID", w.id,
			"PowHash", work.PowHash.Hex(), "Target", work.Target.Hex())
	case types.MsgStart:
		w.running = true
	case types.MsgStop:
		w.running = false
		w.reporter.Reset(w.clock.Now())
	default:
		w.log.Warn("Ignoring unknown control message", "ID", w.id, "Kind", msg.Kind.String())
	}
}

func (w *Worker) publish(seal types.Seal) {
	w.log.Debug("Send new found seal", "ID", w.id,
		"PowHash", seal.PowHash.Hex(), "Nonce", seal.Nonce.String())
	if err := w.seals.Publish(seal); err != nil {
		w.log.Error("Failed to send seal", "ID", w.id, "Err", err)
	}
	w.candidatesFound++
}

func (w *Worker) disconnect() error {
	w.disconnected = true
	w.running = false
	w.reporter.Reset(w.clock.Now())
	return ErrDisconnected
}
