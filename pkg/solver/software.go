package solver

import (
	"crypto/rand"
	"hash"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/powminer/internal/crypto"
	"github.com/screa/powminer/pkg/types"
)

// DefaultBatchSize is the number of nonces tried per Solve call
const DefaultBatchSize = 1 << 12

// MaxBatchSize is the largest batch whose work units fit the uint32
// returned by Solve after rounding up to any lane count
const MaxBatchSize = math.MaxUint32 &^ 7

// Software is a pure Go solver. It hashes pow_hash || nonce with
// keccak-256 and evaluates Arch().Lanes() consecutive nonces per step,
// mirroring how a vector kernel reports a whole step's work even when
// an early lane hits.
type Software struct {
	arch  types.Arch
	lanes int
	steps int
	next  types.Nonce

	// Pre-allocated per-lane buffers
	hashers []hash.Hash
	inputs  [][crypto.SealInputLen]byte
	sums    [][32]byte
	nonces  []types.Nonce
}

// NewSoftware creates a software solver. batchSize is rounded up to a
// multiple of the architecture's lane count. The nonce search starts at
// a random offset.
func NewSoftware(arch types.Arch, batchSize int) *Software {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit := uint64(MaxBatchSize); uint64(batchSize) > limit {
		batchSize = int(limit)
	}
	lanes := arch.Lanes()
	s := &Software{
		arch:    arch,
		lanes:   lanes,
		steps:   (batchSize + lanes - 1) / lanes,
		hashers: make([]hash.Hash, lanes),
		inputs:  make([][crypto.SealInputLen]byte, lanes),
		sums:    make([][32]byte, lanes),
		nonces:  make([]types.Nonce, lanes),
	}
	for i := range s.hashers {
		s.hashers[i] = crypto.NewHasher()
	}
	s.Seek(randomNonce())
	return s
}

// New creates the software solver for arch, failing if the CPU cannot
// run it.
func New(arch types.Arch, batchSize int) (Solver, error) {
	if !Supported(arch) {
		return nil, ErrArchUnsupported
	}
	return NewSoftware(arch, batchSize), nil
}

// Name implements Solver
func (s *Software) Name() string {
	return "software-" + s.arch.String()
}

// Arch implements Solver
func (s *Software) Arch() types.Arch {
	return s.arch
}

// BatchSize returns the number of nonces tried per call
func (s *Software) BatchSize() int {
	return s.steps * s.lanes
}

// Seek sets the next nonce to try
func (s *Software) Seek(n types.Nonce) {
	s.next = n
}

// Solve implements Solver
func (s *Software) Solve(powHash common.Hash, target [32]byte) (types.Nonce, uint32) {
	t, _ := types.TargetFromBytes(target[:])

	var units uint32
	for step := 0; step < s.steps; step++ {
		found := -1
		for lane := 0; lane < s.lanes; lane++ {
			n := s.take()
			s.nonces[lane] = n
			crypto.PutSealInput(s.inputs[lane][:], powHash, n)
			crypto.SealHashInto(s.hashers[lane], s.inputs[lane][:], s.sums[lane][:])
			if found < 0 && t.Satisfied(common.Hash(s.sums[lane])) {
				found = lane
			}
		}
		units += uint32(s.lanes)
		if found >= 0 {
			return s.nonces[found], units
		}
	}
	return types.Nonce{}, units
}

// take returns the next non-zero nonce and advances the cursor
func (s *Software) take() types.Nonce {
	if s.next.IsZero() {
		s.next = s.next.Add(1)
	}
	n := s.next
	s.next = s.next.Add(1)
	return n
}

func randomNonce() types.Nonce {
	var b [types.NonceLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		return types.Nonce{Lo: 1}
	}
	return types.NonceFromBytes(b)
}
