package miner

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/screa/powminer/pkg/types"
)

// DefaultSealBuffer is the default seal queue capacity
const DefaultSealBuffer = 64

// Errors
var (
	ErrPublisherClosed = errors.New("seal receiver is gone")
	ErrPublisherFull   = errors.New("seal queue is full")
)

// Publisher carries seals from many workers to one consumer. Publish
// never blocks: a full queue or a closed publisher is reported as an
// error and the seal is dropped.
type Publisher struct {
	seals chan types.Seal
	done  chan struct{}
	once  sync.Once
}

// NewPublisher creates a publisher with the given queue capacity
func NewPublisher(size int) *Publisher {
	if size <= 0 {
		size = DefaultSealBuffer
	}
	return &Publisher{
		seals: make(chan types.Seal, size),
		done:  make(chan struct{}),
	}
}

// Publish queues a seal
func (p *Publisher) Publish(seal types.Seal) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.seals <- seal:
		return nil
	case <-p.done:
		return ErrPublisherClosed
	default:
		return ErrPublisherFull
	}
}

// Seals returns the receiving end of the queue
func (p *Publisher) Seals() <-chan types.Seal {
	return p.seals
}

// Done is closed once the consumer has gone away
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

// Close marks the consumer as gone. Later publishes fail with
// ErrPublisherClosed. The seal channel itself is left open so that
// concurrent publishers never send on a closed channel.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
}
