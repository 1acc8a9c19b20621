package crypto

import (
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/screa/powminer/pkg/types"
)

const (
	// Seal input layout: pow hash (32) + little-endian nonce (16) = 48
	SealPowHashLen = common.HashLength
	SealNonceLen   = types.NonceLen
	SealInputLen   = SealPowHashLen + SealNonceLen
)

// NewHasher returns the hash used to evaluate seals
func NewHasher() hash.Hash {
	return sha3.NewLegacyKeccak256()
}

// PutSealInput lays out pow hash and nonce in inputBuf, which must be
// SealInputLen bytes.
func PutSealInput(inputBuf []byte, powHash common.Hash, nonce types.Nonce) {
	copy(inputBuf[:SealPowHashLen], powHash[:])
	nb := nonce.Bytes()
	copy(inputBuf[SealPowHashLen:], nb[:])
}

// SealHashInto hashes a prepared seal input and writes the digest into
// hashBuf. Reuses the provided hasher to avoid allocations. hashBuf must
// be at least 32 bytes.
func SealHashInto(hasher hash.Hash, inputBuf, hashBuf []byte) {
	hasher.Reset()
	hasher.Write(inputBuf)
	hasher.Sum(hashBuf[:0])
}

// SealHash computes the hash of a (pow hash, nonce) pair
func SealHash(powHash common.Hash, nonce types.Nonce) common.Hash {
	var input [SealInputLen]byte
	PutSealInput(input[:], powHash, nonce)
	return common.BytesToHash(Keccak256(input[:]))
}

// Verify checks that a seal satisfies target. A zero nonce never does.
func Verify(powHash common.Hash, nonce types.Nonce, target types.Target) bool {
	if nonce.IsZero() {
		return false
	}
	return target.Satisfied(SealHash(powHash, nonce))
}

// ---- helpers ----

// Keccak256 calculates the keccak256 hash of the input bytes
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}
