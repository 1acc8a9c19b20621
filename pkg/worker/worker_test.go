package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingPublisher struct {
	seals []types.Seal
	err   error
}

func (p *recordingPublisher) Publish(seal types.Seal) error {
	p.seals = append(p.seals, seal)
	return p.err
}

type recordingStatus struct {
	messages []string
	incs     uint64
}

func (s *recordingStatus) SetMessage(msg string) { s.messages = append(s.messages, msg) }
func (s *recordingStatus) Inc(delta uint64)      { s.incs += delta }

// scripted is a solver returning queued nonces (zero once exhausted)
type scripted struct {
	nonces  []types.Nonce
	units   uint32
	calls   []common.Hash
	onSolve func()
}

func (s *scripted) solver() solver.Solver {
	return solver.FromFunc("scripted", types.ArchScalar, func(powHash common.Hash, target [32]byte) (types.Nonce, uint32) {
		s.calls = append(s.calls, powHash)
		if s.onSolve != nil {
			s.onSolve()
		}
		var n types.Nonce
		if len(s.nonces) > 0 {
			n, s.nonces = s.nonces[0], s.nonces[1:]
		}
		return n, s.units
	})
}

type harness struct {
	w      *Worker
	inbox  chan types.ControlMessage
	solver *scripted
	seals  *recordingPublisher
	status *recordingStatus
	clock  *fakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		inbox:  make(chan types.ControlMessage, 8),
		solver: &scripted{units: 1000},
		seals:  &recordingPublisher{},
		status: &recordingStatus{},
		clock:  &fakeClock{now: time.Unix(1700000000, 0)},
	}
	opts = append([]Option{
		WithStatus(h.status),
		WithClock(h.clock),
		WithIdleInterval(5 * time.Millisecond),
	}, opts...)
	h.w = New(0, h.solver.solver(), h.inbox, h.seals, logger.NewNop(), opts...)
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.w.Tick(context.Background()))
}

var (
	workH = types.WorkItem{PowHash: common.HexToHash("0xaa"), Target: types.TargetFromDifficulty(1000)}
	workG = types.WorkItem{PowHash: common.HexToHash("0xbb"), Target: types.TargetFromDifficulty(2000)}
)

func TestNewWorker(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateRunningNoWork, h.w.State())
	assert.Equal(t, types.ArchScalar, h.w.Arch())
	assert.Zero(t, h.w.CandidatesFound())
	assert.Nil(t, h.w.Work())
}

func TestScenarioNoNonce(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)

	h.tick(t)

	assert.Equal(t, []common.Hash{workH.PowHash}, h.solver.calls)
	assert.Empty(t, h.seals.seals)
	assert.Zero(t, h.w.CandidatesFound())
	assert.Equal(t, StateRunningSolving, h.w.State())
}

func TestScenarioNonceFound(t *testing.T) {
	h := newHarness(t)
	n := types.Nonce{Lo: 0xdeadbeef, Hi: 1}
	h.solver.nonces = []types.Nonce{n}
	h.inbox <- types.NewWorkMessage(workH)

	h.tick(t)

	require.Len(t, h.seals.seals, 1)
	assert.Equal(t, types.Seal{PowHash: workH.PowHash, Nonce: n}, h.seals.seals[0])
	assert.Equal(t, uint64(1), h.w.CandidatesFound())
}

func TestScenarioStopSleeps(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	h.tick(t)
	h.inbox <- types.StopMessage()

	start := time.Now()
	h.tick(t)

	assert.Len(t, h.solver.calls, 1, "no solve call while stopped")
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.Equal(t, StateStopped, h.w.State())
}

func TestScenarioReportedRate(t *testing.T) {
	h := newHarness(t)
	var reports []Report
	h.w.reporter.hook = func(r Report) { reports = append(reports, r) }
	h.solver.units = 250
	h.solver.onSolve = func() { h.clock.Advance(100 * time.Millisecond) }

	h.inbox <- types.NewWorkMessage(workH)
	h.tick(t)
	h.tick(t)
	h.tick(t)
	assert.Empty(t, reports, "300ms elapsed is not past the threshold")
	assert.Equal(t, uint64(750), h.w.reporter.Window().WorkUnits)

	h.tick(t)
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(1000), reports[0].WorkUnits)
	assert.Equal(t, 400*time.Millisecond, reports[0].Elapsed)
	assert.InDelta(t, 4*250/0.4, reports[0].Rate, 1e-9)

	assert.Zero(t, h.w.reporter.Window().WorkUnits, "window resets after a report")
	assert.Equal(t, h.clock.Now(), h.w.reporter.Window().Start)
	require.Len(t, h.status.messages, 1)
	assert.Equal(t, "hash rate:   2500.000 / seals found:          0", h.status.messages[0])
	assert.Equal(t, uint64(1), h.status.incs)
}

func TestStopStartResumesWork(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	h.tick(t)

	for i := 0; i < 3; i++ {
		h.inbox <- types.StopMessage()
		h.tick(t)
		assert.Equal(t, StateStopped, h.w.State())
		h.inbox <- types.StartMessage()
		h.tick(t)
		assert.Equal(t, StateRunningSolving, h.w.State())
	}

	require.Len(t, h.solver.calls, 4)
	for _, call := range h.solver.calls {
		assert.Equal(t, workH.PowHash, call)
	}
}

func TestNewWorkWhileStopped(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	h.tick(t)
	h.inbox <- types.StopMessage()
	h.inbox <- types.NewWorkMessage(workG)

	h.tick(t)
	h.tick(t)
	assert.Equal(t, StateStopped, h.w.State())
	require.NotNil(t, h.w.Work())
	assert.Equal(t, workG.PowHash, h.w.Work().PowHash)
	assert.Len(t, h.solver.calls, 1)

	h.inbox <- types.StartMessage()
	h.tick(t)
	assert.Equal(t, []common.Hash{workH.PowHash, workG.PowHash}, h.solver.calls)
}

func TestNoSolveWithoutWork(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.StartMessage()
	for i := 0; i < 3; i++ {
		h.tick(t)
	}
	assert.Empty(t, h.solver.calls)
	assert.Equal(t, StateRunningNoWork, h.w.State())
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.seals.err = errors.New("receiver gone")
	h.solver.nonces = []types.Nonce{{Lo: 1}, {}, {Lo: 2}}
	h.inbox <- types.NewWorkMessage(workH)

	for i := 0; i < 3; i++ {
		h.tick(t)
	}

	assert.Len(t, h.seals.seals, 2, "one publish attempt per non-zero nonce")
	assert.Equal(t, uint64(2), h.w.CandidatesFound())
	assert.Equal(t, StateRunningSolving, h.w.State())
}

func TestStopResetsThroughput(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	h.tick(t)
	h.tick(t)
	assert.Equal(t, uint64(2000), h.w.reporter.Window().WorkUnits, "accumulates while solving")

	h.clock.Advance(50 * time.Millisecond)
	h.inbox <- types.StopMessage()
	h.tick(t)
	assert.Zero(t, h.w.reporter.Window().WorkUnits)
	assert.Equal(t, h.clock.Now(), h.w.reporter.Window().Start)
}

func TestOneMessagePerTick(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	h.inbox <- types.StopMessage()

	h.tick(t)
	assert.Equal(t, StateRunningSolving, h.w.State())
	assert.Len(t, h.inbox, 1)

	h.tick(t)
	assert.Equal(t, StateStopped, h.w.State())
}

func TestInFlightSolveUsesWorkAtStart(t *testing.T) {
	h := newHarness(t)
	h.solver.nonces = []types.Nonce{{Lo: 7}}
	h.solver.onSolve = func() {
		if len(h.solver.calls) == 1 {
			h.inbox <- types.NewWorkMessage(workG)
		}
	}
	h.inbox <- types.NewWorkMessage(workH)

	h.tick(t)
	require.Len(t, h.seals.seals, 1)
	assert.Equal(t, workH.PowHash, h.seals.seals[0].PowHash)

	h.tick(t)
	assert.Equal(t, workG.PowHash, h.solver.calls[1])
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t)
	h.inbox <- types.NewWorkMessage(workH)
	close(h.inbox)

	h.tick(t)
	err := h.w.Tick(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, StateDisconnected, h.w.State())

	err = h.w.Tick(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Len(t, h.solver.calls, 1)
}

func TestDisconnectWhileIdle(t *testing.T) {
	h := newHarness(t, WithIdleInterval(time.Minute))
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(h.inbox)
	}()

	err := h.w.Tick(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestRun(t *testing.T) {
	t.Run("returns on disconnect", func(t *testing.T) {
		h := newHarness(t)
		h.inbox <- types.NewWorkMessage(workH)
		h.inbox <- types.StopMessage()
		close(h.inbox)

		err := h.w.Run(context.Background())
		assert.ErrorIs(t, err, ErrDisconnected)
		assert.Len(t, h.solver.calls, 1)
	})

	t.Run("returns nil on cancel", func(t *testing.T) {
		h := newHarness(t, WithIdleInterval(time.Minute))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.w.Run(ctx) }()

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}

func TestLogStatus(t *testing.T) {
	s := NewLogStatus()
	assert.Empty(t, s.Message())

	s.SetMessage("hash rate: 1")
	s.Inc(2)
	assert.Equal(t, "hash rate: 1", s.Message())
	assert.Equal(t, uint64(2), s.Reports())
}
