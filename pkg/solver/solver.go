// Package solver defines the compute primitive a worker drives and
// provides a software implementation for each architecture.
package solver

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/screa/powminer/pkg/types"
)

// Solver performs a bounded amount of search work per call.
//
// Solve returns a non-zero nonce if it found one whose seal hash is
// claimed to satisfy target, and the number of work units it spent.
// Search state advances across calls, so repeated calls with the same
// inputs explore different nonces. A Solver is not safe for concurrent
// use; each worker owns its own.
type Solver interface {
	Name() string
	Arch() types.Arch
	Solve(powHash common.Hash, target [32]byte) (nonce types.Nonce, workUnits uint32)
}

// Func is the signature of a solve call
type Func func(powHash common.Hash, target [32]byte) (types.Nonce, uint32)

type funcSolver struct {
	name string
	arch types.Arch
	fn   Func
}

// FromFunc adapts a function to the Solver interface, typically to plug
// in an externally provided kernel.
func FromFunc(name string, arch types.Arch, fn Func) Solver {
	return &funcSolver{name: name, arch: arch, fn: fn}
}

func (s *funcSolver) Name() string     { return s.name }
func (s *funcSolver) Arch() types.Arch { return s.arch }

func (s *funcSolver) Solve(powHash common.Hash, target [32]byte) (types.Nonce, uint32) {
	return s.fn(powHash, target)
}
