package miner

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/screa/powminer/internal/crypto"
	"github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/types"
)

// DefaultDedupeSize is the number of recent seals remembered
const DefaultDedupeSize = 1024

// Verdict is the outcome of checking a seal
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictDuplicate
	VerdictStale
	VerdictInvalid
	VerdictNoWork
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictStale:
		return "stale"
	case VerdictInvalid:
		return "invalid"
	case VerdictNoWork:
		return "no-work"
	case VerdictRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// WorkSource tells the collector what work is current
type WorkSource interface {
	Current() *types.WorkItem
}

// VerifyFunc checks a nonce against a pow hash and target
type VerifyFunc func(powHash common.Hash, nonce types.Nonce, target types.Target) bool

// SubmitFunc receives seals that passed validation
type SubmitFunc func(seal types.Seal, work types.WorkItem) error

// CollectorStats counts verdicts
type CollectorStats struct {
	Accepted  int64
	Duplicate int64
	Stale     int64
	Invalid   int64
	NoWork    int64
	Rejected  int64
}

// Collector is the consumer side of the seal queue. Workers do not
// invalidate seals for replaced work, so every seal is re-checked here
// before it is submitted.
type Collector struct {
	source WorkSource
	verify VerifyFunc
	submit SubmitFunc
	seen   *lru.Cache
	log    logger.Logger

	accepted  metrics.Counter
	duplicate metrics.Counter
	stale     metrics.Counter
	invalid   metrics.Counter
	noWork    metrics.Counter
	rejected  metrics.Counter
}

// NewCollector creates a collector. verify defaults to the keccak seal
// check used by the software solvers.
func NewCollector(source WorkSource, verify VerifyFunc, submit SubmitFunc, dedupeSize int,
	log logger.Logger, registry metrics.Registry) (*Collector, error) {
	if dedupeSize <= 0 {
		dedupeSize = DefaultDedupeSize
	}
	seen, err := lru.New(dedupeSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create seal cache")
	}
	if verify == nil {
		verify = crypto.Verify
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	return &Collector{
		source:    source,
		verify:    verify,
		submit:    submit,
		seen:      seen,
		log:       log,
		accepted:  metrics.GetOrRegisterCounter("seals.accepted", registry),
		duplicate: metrics.GetOrRegisterCounter("seals.duplicate", registry),
		stale:     metrics.GetOrRegisterCounter("seals.stale", registry),
		invalid:   metrics.GetOrRegisterCounter("seals.invalid", registry),
		noWork:    metrics.GetOrRegisterCounter("seals.nowork", registry),
		rejected:  metrics.GetOrRegisterCounter("seals.rejected", registry),
	}, nil
}

// Handle checks one seal and submits it if it is valid for current work
func (c *Collector) Handle(seal types.Seal) Verdict {
	if found, _ := c.seen.ContainsOrAdd(seal.Key(), struct{}{}); found {
		c.duplicate.Inc(1)
		return VerdictDuplicate
	}

	work := c.source.Current()
	if work == nil {
		c.noWork.Inc(1)
		return VerdictNoWork
	}
	if work.PowHash != seal.PowHash {
		c.stale.Inc(1)
		c.log.Debug("Dropping seal for replaced work",
			"PowHash", seal.PowHash.Hex(), "Current", work.PowHash.Hex())
		return VerdictStale
	}
	if !c.verify(seal.PowHash, seal.Nonce, work.Target) {
		c.invalid.Inc(1)
		c.log.Warn("Dropping seal that does not meet target",
			"PowHash", seal.PowHash.Hex(), "Nonce", seal.Nonce.String())
		return VerdictInvalid
	}

	if c.submit != nil {
		if err := c.submit(seal, *work); err != nil {
			c.rejected.Inc(1)
			c.log.Error("Failed to submit seal", "Err", err)
			return VerdictRejected
		}
	}
	c.accepted.Inc(1)
	return VerdictAccepted
}

// Run handles seals until ctx is done or the channel is closed
func (c *Collector) Run(ctx context.Context, seals <-chan types.Seal) {
	for {
		select {
		case <-ctx.Done():
			return
		case seal, ok := <-seals:
			if !ok {
				return
			}
			c.Handle(seal)
		}
	}
}

// Stats returns the verdict counts so far
func (c *Collector) Stats() CollectorStats {
	return CollectorStats{
		Accepted:  c.accepted.Count(),
		Duplicate: c.duplicate.Count(),
		Stale:     c.stale.Count(),
		Invalid:   c.invalid.Count(),
		NoWork:    c.noWork.Count(),
		Rejected:  c.rejected.Count(),
	}
}
