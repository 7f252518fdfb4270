// Package timer provides single-slot cancellable timers.
package timer

import (
	"sync"
	"time"
)

// Slot holds at most one pending callback. Scheduling replaces any pending
// callback, and a callback that was superseded or cancelled never runs, even
// if its underlying timer had already fired.
type Slot struct {
	mu    sync.Mutex
	t     *time.Timer
	gen   uint64
	armed bool
}

// Schedule arms the slot to run fn after d, replacing any pending callback.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.t != nil {
		s.t.Stop()
	}
	s.gen++
	gen := s.gen
	s.armed = true
	s.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if !s.armed || s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.armed = false
		s.t = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel disarms the slot. It reports whether a callback was pending.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.armed
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
	s.armed = false
	return was
}

// Pending reports whether a callback is scheduled and has not yet run.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}
