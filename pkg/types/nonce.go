package types

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// NonceLen is the size of the nonce buffer written by a solver
const NonceLen = 16

// Nonce is a 128-bit value. Zero means no solution was found.
type Nonce struct {
	Lo uint64
	Hi uint64
}

// NonceFromBytes decodes a little-endian 16-byte buffer
func NonceFromBytes(b [NonceLen]byte) Nonce {
	return Nonce{
		Lo: binary.LittleEndian.Uint64(b[:8]),
		Hi: binary.LittleEndian.Uint64(b[8:]),
	}
}

// Bytes encodes the nonce as little-endian bytes
func (n Nonce) Bytes() [NonceLen]byte {
	var b [NonceLen]byte
	binary.LittleEndian.PutUint64(b[:8], n.Lo)
	binary.LittleEndian.PutUint64(b[8:], n.Hi)
	return b
}

// IsZero reports whether the nonce is the "no solution" value
func (n Nonce) IsZero() bool {
	return n.Lo == 0 && n.Hi == 0
}

// Add returns n+k, wrapping at 2^128
func (n Nonce) Add(k uint64) Nonce {
	lo := n.Lo + k
	hi := n.Hi
	if lo < n.Lo {
		hi++
	}
	return Nonce{Lo: lo, Hi: hi}
}

// Hex returns the nonce as 32 hex digits
func (n Nonce) Hex() string {
	return fmt.Sprintf("0x%016x%016x", n.Hi, n.Lo)
}

// String returns the decimal form
func (n Nonce) String() string {
	var be [32]byte
	binary.BigEndian.PutUint64(be[16:24], n.Hi)
	binary.BigEndian.PutUint64(be[24:], n.Lo)
	return new(uint256.Int).SetBytes32(be[:]).Dec()
}
