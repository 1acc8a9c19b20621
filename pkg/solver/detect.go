package solver

import (
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"

	"github.com/screa/powminer/pkg/types"
)

// ErrArchUnsupported is returned when the CPU lacks an architecture's features
var ErrArchUnsupported = errors.New("architecture not supported by this CPU")

// Supported reports whether the CPU has the features an architecture needs
func Supported(arch types.Arch) bool {
	switch arch {
	case types.ArchScalar:
		return true
	case types.ArchVector256:
		return cpuid.CPU.Supports(cpuid.AVX2)
	case types.ArchVector512:
		return cpuid.CPU.Supports(cpuid.AVX512F)
	}
	return false
}

// Detect returns the fastest supported architecture
func Detect() types.Arch {
	best := types.ArchScalar
	for _, arch := range types.Archs {
		if Supported(arch) {
			best = arch
		}
	}
	return best
}

// Resolve maps a configured architecture name to an Arch. "auto" and
// the empty string select the detected one.
func Resolve(name string) (types.Arch, error) {
	if n := strings.ToLower(strings.TrimSpace(name)); n == "" || n == "auto" {
		return Detect(), nil
	}

	arch, err := types.ParseArch(name)
	if err != nil {
		return 0, err
	}
	if !Supported(arch) {
		return 0, errors.Wrapf(ErrArchUnsupported, "%s", arch)
	}
	return arch, nil
}

// CPUInfo describes the host CPU
type CPUInfo struct {
	Brand        string
	LogicalCores int
	Features     []string
	Detected     types.Arch
}

// DetectCPU collects the CPU details relevant to architecture selection
func DetectCPU() CPUInfo {
	return CPUInfo{
		Brand:        cpuid.CPU.BrandName,
		LogicalCores: cpuid.CPU.LogicalCores,
		Features:     cpuid.CPU.FeatureSet(),
		Detected:     Detect(),
	}
}
