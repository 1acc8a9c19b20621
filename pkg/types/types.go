package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// WorkItem is the block header digest being mined together with the
// threshold a solution hash must satisfy. It is never mutated once
// handed to a worker; new work replaces it wholesale.
type WorkItem struct {
	PowHash common.Hash
	Target  Target
}

// NewWorkItem creates a work item
func NewWorkItem(powHash common.Hash, target Target) *WorkItem {
	return &WorkItem{PowHash: powHash, Target: target}
}

// Seal is a candidate nonce found for a pow hash. The consumer is
// expected to re-check it before acting on it.
type Seal struct {
	PowHash common.Hash
	Nonce   Nonce
}

// Key returns a comparable identity for the seal
func (s Seal) Key() [48]byte {
	var k [48]byte
	copy(k[:32], s.PowHash[:])
	nb := s.Nonce.Bytes()
	copy(k[32:], nb[:])
	return k
}

// MessageKind tags a ControlMessage
type MessageKind uint8

// Control message kinds
const (
	MsgNewWork MessageKind = iota
	MsgStart
	MsgStop
)

func (k MessageKind) String() string {
	switch k {
	case MsgNewWork:
		return "new-work"
	case MsgStart:
		return "start"
	case MsgStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ControlMessage is a command sent to a worker by a dispatcher.
// Work is only set for MsgNewWork.
type ControlMessage struct {
	Kind MessageKind
	Work *WorkItem
}

// NewWorkMessage creates a message replacing a worker's current work
func NewWorkMessage(work WorkItem) ControlMessage {
	return ControlMessage{Kind: MsgNewWork, Work: &work}
}

// StartMessage creates a message enabling solving
func StartMessage() ControlMessage {
	return ControlMessage{Kind: MsgStart}
}

// StopMessage creates a message disabling solving
func StopMessage() ControlMessage {
	return ControlMessage{Kind: MsgStop}
}
