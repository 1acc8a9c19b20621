package types

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Errors
var (
	ErrTargetTooLong = errors.New("target exceeds 256 bits")
	ErrTargetZero    = errors.New("target must be non-zero")
)

// Target is a 256-bit unsigned threshold. A hash satisfies the target
// when, read as a big-endian integer, it is less than or equal to it.
type Target struct {
	n uint256.Int
}

// TargetFromBytes reads a big-endian target of at most 32 bytes
func TargetFromBytes(b []byte) (Target, error) {
	var t Target
	if len(b) > 32 {
		return t, ErrTargetTooLong
	}
	t.n.SetBytes(b)
	return t, nil
}

// TargetFromHex parses a hex target, with or without 0x. Odd-length
// input is left padded.
func TargetFromHex(s string) (Target, error) {
	h := strings.TrimSpace(s)
	if len(h) >= 2 && (h[0:2] == "0x" || h[0:2] == "0X") {
		h = h[2:]
	}
	if len(h)%2 != 0 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return Target{}, errors.Wrap(err, "invalid target hex")
	}
	return TargetFromBytes(b)
}

// TargetFromDifficulty returns (2^256-1)/difficulty. A zero difficulty
// yields the maximum target.
func TargetFromDifficulty(difficulty uint64) Target {
	var t Target
	t.n.SetAllOne()
	if difficulty > 1 {
		t.n.Div(&t.n, uint256.NewInt(difficulty))
	}
	return t
}

// MaxTarget returns a target every hash satisfies
func MaxTarget() Target {
	return TargetFromDifficulty(0)
}

// Bytes32 returns the target as 32 big-endian bytes
func (t Target) Bytes32() [32]byte {
	return t.n.Bytes32()
}

// Satisfied reports whether hash <= target
func (t Target) Satisfied(hash common.Hash) bool {
	var h uint256.Int
	h.SetBytes32(hash[:])
	return !h.Gt(&t.n)
}

// IsZero reports whether the target is zero
func (t Target) IsZero() bool {
	return t.n.IsZero()
}

// Equal reports whether both targets hold the same value
func (t Target) Equal(o Target) bool {
	return t.n.Eq(&o.n)
}

// Hex returns the 0x-prefixed minimal hex form
func (t Target) Hex() string {
	return t.n.Hex()
}

func (t Target) String() string {
	return t.Hex()
}
