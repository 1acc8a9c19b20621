package types

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownArch is returned for an unrecognized architecture name
var ErrUnknownArch = errors.New("unknown architecture")

// Arch selects the solver entry point a worker drives. It is fixed for
// the lifetime of a worker.
type Arch uint32

const (
	ArchScalar Arch = iota
	ArchVector256
	ArchVector512
)

// Archs lists every architecture, slowest first
var Archs = []Arch{ArchScalar, ArchVector256, ArchVector512}

// ParseArch parses an architecture name
func ParseArch(name string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "0", "scalar", "generic":
		return ArchScalar, nil
	case "1", "avx2", "vector256":
		return ArchVector256, nil
	case "2", "avx512", "vector512":
		return ArchVector512, nil
	}
	return 0, errors.Wrapf(ErrUnknownArch, "%q", name)
}

func (a Arch) String() string {
	switch a {
	case ArchScalar:
		return "scalar"
	case ArchVector256:
		return "avx2"
	case ArchVector512:
		return "avx512"
	default:
		return "unknown"
	}
}

// Lanes is the number of nonces the architecture evaluates per step
func (a Arch) Lanes() int {
	switch a {
	case ArchVector256:
		return 4
	case ArchVector512:
		return 8
	default:
		return 1
	}
}
