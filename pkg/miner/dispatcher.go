package miner

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/screa/powminer/pkg/types"
)

// DefaultInboxSize is the default per-worker control queue capacity
const DefaultInboxSize = 16

// ErrDispatcherClosed is returned once Close has been called
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Snapshot is the dispatcher's view of what every worker should be doing
type Snapshot struct {
	Version uint64
	Work    *types.WorkItem
	Running bool
}

// Dispatcher fans control messages out to every subscribed worker. Each
// worker has its own inbox; Broadcast delivers to all of them in the
// same order, so no worker can be forgotten by the caller.
//
// sendMu orders broadcasts and is held while sending; mu guards the
// inbox list and snapshot and is never held across a send. Lock order
// is sendMu then mu.
type Dispatcher struct {
	sendMu    sync.Mutex
	mu        sync.Mutex
	inboxSize int
	inboxes   []chan types.ControlMessage
	closed    bool
	snapshot  Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher whose inboxes hold inboxSize messages
func NewDispatcher(inboxSize int) *Dispatcher {
	if inboxSize < 2 {
		inboxSize = DefaultInboxSize
	}
	return &Dispatcher{
		inboxSize: inboxSize,
		snapshot:  Snapshot{Running: true},
		done:      make(chan struct{}),
	}
}

// Subscribe creates an inbox for a new worker. The inbox is primed with
// the current work and run state so late subscribers catch up.
func (d *Dispatcher) Subscribe() (<-chan types.ControlMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDispatcherClosed
	}

	inbox := make(chan types.ControlMessage, d.inboxSize)
	if d.snapshot.Work != nil {
		inbox <- types.NewWorkMessage(*d.snapshot.Work)
	}
	if !d.snapshot.Running {
		inbox <- types.StopMessage()
	}
	d.inboxes = append(d.inboxes, inbox)
	return inbox, nil
}

// Broadcast delivers msg to every inbox. It blocks while an inbox is
// full, until ctx is done or the dispatcher is closed.
func (d *Dispatcher) Broadcast(ctx context.Context, msg types.ControlMessage) error {
	if msg.Kind == types.MsgNewWork && msg.Work == nil {
		return errors.New("new work message without work")
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	switch msg.Kind {
	case types.MsgNewWork:
		work := *msg.Work
		d.snapshot.Work = &work
	case types.MsgStart:
		d.snapshot.Running = true
	case types.MsgStop:
		d.snapshot.Running = false
	}
	d.snapshot.Version++
	inboxes := make([]chan types.ControlMessage, len(d.inboxes))
	copy(inboxes, d.inboxes)
	d.mu.Unlock()

	for i, inbox := range inboxes {
		select {
		case inbox <- msg:
		case <-d.done:
			return ErrDispatcherClosed
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "broadcast interrupted at inbox %d", i)
		}
	}
	return nil
}

// NewWork broadcasts a new work item
func (d *Dispatcher) NewWork(ctx context.Context, work types.WorkItem) error {
	return d.Broadcast(ctx, types.NewWorkMessage(work))
}

// Start broadcasts a start command
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.Broadcast(ctx, types.StartMessage())
}

// Stop broadcasts a stop command
func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.Broadcast(ctx, types.StopMessage())
}

// Snapshot returns the latest broadcast state
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Current returns the latest work item, or nil
func (d *Dispatcher) Current() *types.WorkItem {
	return d.Snapshot().Work
}

// Subscribers returns the number of inboxes
func (d *Dispatcher) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inboxes)
}

// Close closes every inbox. Workers observe this as disconnection. A
// Broadcast blocked on a full inbox is released with ErrDispatcherClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })

	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for _, inbox := range d.inboxes {
		close(inbox)
	}
}
