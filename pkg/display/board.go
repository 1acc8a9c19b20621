// Package display renders worker status lines on the terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
)

// DefaultRefresh is how often the board redraws
const DefaultRefresh = 100 * time.Millisecond

// Lane holds the latest status of one worker. Writes never block.
type Lane struct {
	name    string
	message atomic.Value
	reports atomic.Uint64
}

// SetMessage stores the latest status line
func (l *Lane) SetMessage(msg string) {
	l.message.Store(msg)
}

// Inc counts reports
func (l *Lane) Inc(delta uint64) {
	l.reports.Add(delta)
}

// Message returns the latest status line
func (l *Lane) Message() string {
	msg, _ := l.message.Load().(string)
	return msg
}

// Reports returns the number of reports received
func (l *Lane) Reports() uint64 {
	return l.reports.Load()
}

// Board collects lanes and renders them behind a spinner
type Board struct {
	mu      sync.Mutex
	lanes   []*Lane
	spin    *spinner.Spinner
	refresh time.Duration
	stop    chan struct{}
	done    chan struct{}
}

// NewBoard creates a board drawing to w
func NewBoard(w io.Writer, refresh time.Duration) *Board {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	s := spinner.New(spinner.CharSets[14], refresh, spinner.WithWriter(w))
	s.Prefix = " "
	return &Board{
		spin:    s,
		refresh: refresh,
	}
}

// Lane registers a new lane
func (b *Board) Lane(name string) *Lane {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := &Lane{name: name}
	b.lanes = append(b.lanes, l)
	return l
}

// Render returns the current board text
func (b *Board) Render() string {
	b.mu.Lock()
	lanes := make([]*Lane, len(b.lanes))
	copy(lanes, b.lanes)
	b.mu.Unlock()

	parts := make([]string, 0, len(lanes))
	for _, l := range lanes {
		msg := l.Message()
		if msg == "" {
			msg = "waiting"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", l.name, msg))
	}
	return strings.Join(parts, " | ")
}

// Start begins drawing. It is a no-op if already started.
func (b *Board) Start() {
	b.mu.Lock()
	if b.stop != nil {
		b.mu.Unlock()
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	stop, done := b.stop, b.done
	b.mu.Unlock()

	b.spin.Start()
	go func() {
		defer close(done)
		ticker := time.NewTicker(b.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				text := " " + b.Render()
				b.spin.Lock()
				b.spin.Suffix = text
				b.spin.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// Stop stops drawing and leaves the final board on screen
func (b *Board) Stop() {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.mu.Unlock()
	if stop == nil {
		return
	}

	close(stop)
	<-done
	b.spin.FinalMSG = " " + b.Render() + "\n"
	b.spin.Stop()
}
