package solver

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screa/powminer/internal/crypto"
	"github.com/screa/powminer/pkg/types"
)

func TestSoftwareFindsWithMaxTarget(t *testing.T) {
	powHash := common.HexToHash("0xfeed")
	target := types.MaxTarget()

	for _, arch := range types.Archs {
		t.Run(arch.String(), func(t *testing.T) {
			s := NewSoftware(arch, 64)
			nonce, units := s.Solve(powHash, target.Bytes32())
			require.False(t, nonce.IsZero())
			assert.Equal(t, uint32(arch.Lanes()), units, "first step hits, whole step is reported")
			assert.True(t, crypto.Verify(powHash, nonce, target))
		})
	}
}

func TestSoftwareNoSolution(t *testing.T) {
	s := NewSoftware(types.ArchVector256, 10)
	assert.Equal(t, 12, s.BatchSize())

	nonce, units := s.Solve(common.HexToHash("0x01"), [32]byte{})
	assert.True(t, nonce.IsZero())
	assert.Equal(t, uint32(12), units)
}

func TestSoftwareClampsBatchSize(t *testing.T) {
	huge := uint64(1) << 33
	s := NewSoftware(types.ArchVector512, int(huge))
	assert.LessOrEqual(t, uint64(s.BatchSize()), uint64(MaxBatchSize))
	assert.Zero(t, s.BatchSize()%types.ArchVector512.Lanes())
}

func TestSoftwareAdvancesAndSkipsZero(t *testing.T) {
	s := NewSoftware(types.ArchScalar, 1)
	s.Seek(types.Nonce{Lo: ^uint64(0), Hi: ^uint64(0)})

	max := types.MaxTarget().Bytes32()
	first, _ := s.Solve(common.Hash{}, max)
	second, _ := s.Solve(common.Hash{}, max)

	assert.Equal(t, types.Nonce{Lo: ^uint64(0), Hi: ^uint64(0)}, first)
	assert.Equal(t, types.Nonce{Lo: 1}, second, "wrapping must skip the zero nonce")
}

func TestResolve(t *testing.T) {
	arch, err := Resolve("scalar")
	require.NoError(t, err)
	assert.Equal(t, types.ArchScalar, arch)

	arch, err = Resolve("auto")
	require.NoError(t, err)
	assert.Equal(t, Detect(), arch)
	assert.True(t, Supported(arch))

	_, err = Resolve("sparc")
	assert.ErrorIs(t, err, types.ErrUnknownArch)
}

func TestFromFunc(t *testing.T) {
	calls := 0
	s := FromFunc("scripted", types.ArchVector512, func(powHash common.Hash, target [32]byte) (types.Nonce, uint32) {
		calls++
		return types.Nonce{Lo: 5}, 100
	})

	nonce, units := s.Solve(common.Hash{}, [32]byte{})
	assert.Equal(t, "scripted", s.Name())
	assert.Equal(t, types.ArchVector512, s.Arch())
	assert.Equal(t, types.Nonce{Lo: 5}, nonce)
	assert.Equal(t, uint32(100), units)
	assert.Equal(t, 1, calls)
}

func TestNewRejectsUnsupported(t *testing.T) {
	for _, arch := range types.Archs {
		s, err := New(arch, 0)
		if !Supported(arch) {
			assert.ErrorIs(t, err, ErrArchUnsupported)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, arch, s.Arch())
	}
}
