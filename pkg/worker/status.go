package worker

import (
	"sync/atomic"
)

// StatusSink receives short status lines from a worker. Implementations
// must not block: the worker calls them from its hot loop.
type StatusSink interface {
	SetMessage(msg string)
	Inc(delta uint64)
}

// LogStatus is a StatusSink that keeps the latest status line for a
// logger to pick up. SetMessage never writes to the logger itself.
type LogStatus struct {
	message atomic.Value
	reports atomic.Uint64
}

// NewLogStatus creates a LogStatus
func NewLogStatus() *LogStatus {
	return &LogStatus{}
}

// SetMessage implements StatusSink
func (s *LogStatus) SetMessage(msg string) {
	s.message.Store(msg)
}

// Message returns the latest status line
func (s *LogStatus) Message() string {
	msg, _ := s.message.Load().(string)
	return msg
}

// Inc implements StatusSink
func (s *LogStatus) Inc(delta uint64) {
	s.reports.Add(delta)
}

// Reports returns the number of increments received
func (s *LogStatus) Reports() uint64 {
	return s.reports.Load()
}
