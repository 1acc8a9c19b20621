package miner

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/screa/powminer/internal/config"
	"github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
	"github.com/screa/powminer/pkg/worker"
)

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("miner already started")

// SolverFactory creates the solver for one worker
type SolverFactory func(id int, arch types.Arch) (solver.Solver, error)

// StatusFactory creates the status sink for one worker
type StatusFactory func(id int) worker.StatusSink

// Option configures a Miner
type Option func(m *Miner)

// WithSolverFactory replaces the software solvers
func WithSolverFactory(fn SolverFactory) Option {
	return func(m *Miner) { m.newSolver = fn }
}

// WithStatus sets where workers send their status lines
func WithStatus(fn StatusFactory) Option {
	return func(m *Miner) { m.newStatus = fn }
}

// WithVerify replaces the seal check used by the collector
func WithVerify(fn VerifyFunc) Option {
	return func(m *Miner) { m.verify = fn }
}

// WithRegistry sets the metrics registry
func WithRegistry(r metrics.Registry) Option {
	return func(m *Miner) { m.registry = r }
}

// Stats summarizes a mining session
type Stats struct {
	Workers int
	Arch    types.Arch
	Hashes  int64
	Rate    float64
	Elapsed time.Duration
	Seals   CollectorStats
}

// Miner owns a set of workers, the dispatcher feeding them and the
// publisher and collector draining their seals
type Miner struct {
	cfg  *config.Config
	log  logger.Logger
	arch types.Arch

	newSolver SolverFactory
	newStatus StatusFactory
	verify    VerifyFunc
	registry  metrics.Registry

	dispatcher *Dispatcher
	publisher  *Publisher
	collector  *Collector
	workers    []*worker.Worker
	hashrate   metrics.Meter

	// set when workers report through the default LogStatus
	logStatuses []*worker.LogStatus

	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewMiner creates a miner with cfg.Workers workers. Seals that pass
// validation are handed to submit, which may be nil.
func NewMiner(cfg *config.Config, log logger.Logger, submit SubmitFunc, opts ...Option) (*Miner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	arch, err := solver.Resolve(cfg.Arch)
	if err != nil {
		return nil, err
	}

	m := &Miner{
		cfg:  cfg,
		log:  log.Module("miner"),
		arch: arch,
	}
	m.newSolver = func(_ int, arch types.Arch) (solver.Solver, error) {
		return solver.New(arch, cfg.BatchSize)
	}
	m.newStatus = func(int) worker.StatusSink {
		s := worker.NewLogStatus()
		m.logStatuses = append(m.logStatuses, s)
		return s
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = metrics.NewRegistry()
	}

	m.dispatcher = NewDispatcher(cfg.InboxSize)
	m.publisher = NewPublisher(cfg.SealBuffer)
	m.collector, err = NewCollector(m.dispatcher, m.verify, submit, cfg.DedupeSize,
		log.Module("collector"), m.registry)
	if err != nil {
		return nil, err
	}
	m.hashrate = metrics.GetOrRegisterMeter("miner.hashrate", m.registry)
	metrics.GetOrRegisterGauge("miner.workers", m.registry).Update(int64(cfg.Workers))

	if cfg.HasWork() {
		work, err := cfg.GetWorkItem()
		if err != nil {
			return nil, err
		}
		if err := m.dispatcher.NewWork(context.Background(), *work); err != nil {
			return nil, err
		}
	}

	for id := 0; id < cfg.Workers; id++ {
		s, err := m.newSolver(id, arch)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create solver for worker %d", id)
		}
		inbox, err := m.dispatcher.Subscribe()
		if err != nil {
			return nil, err
		}
		w := worker.New(id, s, inbox, m.publisher, log.Module("worker"),
			worker.WithStatus(m.newStatus(id)),
			worker.WithReportInterval(cfg.ReportInterval),
			worker.WithIdleInterval(cfg.IdleInterval),
			worker.WithReportHook(m.onReport),
		)
		m.workers = append(m.workers, w)
	}

	return m, nil
}

// onReport runs on worker goroutines
func (m *Miner) onReport(r worker.Report) {
	m.hashrate.Mark(int64(r.WorkUnits))
}

// Start launches the workers and the collector
func (m *Miner) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.started = time.Now()

	m.log.Info("Mining started", "Workers", len(m.workers), "Arch", m.arch.String(),
		"Work", m.cfg.GetTargetDescription())

	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *worker.Worker) {
			defer m.wg.Done()
			err := w.Run(ctx)
			if err != nil && !errors.Is(err, worker.ErrDisconnected) {
				m.log.Error("Worker failed", "ID", w.ID(), "Err", err)
			}
		}(w)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.collector.Run(ctx, m.publisher.Seals())
	}()

	if len(m.logStatuses) > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.logProgress(ctx)
		}()
	}
	return nil
}

// logProgress writes each worker's latest status line at debug level
// once per report interval, skipping workers with nothing new
func (m *Miner) logProgress(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ReportInterval)
	defer ticker.Stop()

	seen := make([]uint64, len(m.logStatuses))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, s := range m.logStatuses {
				if n := s.Reports(); n != seen[id] {
					seen[id] = n
					m.log.Debug(s.Message(), "ID", id)
				}
			}
		}
	}
}

// Dispatcher returns the control side used to feed work to the workers
func (m *Miner) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Arch returns the architecture the workers solve with
func (m *Miner) Arch() types.Arch {
	return m.arch
}

// Registry returns the metrics registry
func (m *Miner) Registry() metrics.Registry {
	return m.registry
}

// Hashrate returns the mean hash rate since the miner started
func (m *Miner) Hashrate() float64 {
	return m.hashrate.RateMean()
}

// Stats returns a summary of the session so far
func (m *Miner) Stats() Stats {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}
	return Stats{
		Workers: len(m.workers),
		Arch:    m.arch,
		Hashes:  m.hashrate.Count(),
		Rate:    m.hashrate.RateMean(),
		Elapsed: elapsed,
		Seals:   m.collector.Stats(),
	}
}

// Stop cancels the workers, disconnects their inboxes and waits for
// every goroutine to exit
func (m *Miner) Stop() {
	m.once.Do(func() {
		m.mu.Lock()
		cancel := m.cancel
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		m.dispatcher.Close()
		m.wg.Wait()
		m.publisher.Close()
		m.hashrate.Stop()
		m.log.Info("Mining stopped")
	})
}

// Wait blocks until every worker, the collector and the progress log
// have exited
func (m *Miner) Wait() {
	m.wg.Wait()
}
