package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scope is the liveness boundary of one session. Work started inside the
// scope checks Alive after every suspension point; Close flips liveness,
// cancels the scope context and synchronously runs the registered abort
// hooks (most recent first).
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	alive  atomic.Bool

	mu    sync.Mutex
	hooks []func()
}

// NewScope opens a scope derived from parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{ctx: ctx, cancel: cancel}
	s.alive.Store(true)
	return s
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Alive reports whether the scope is still open.
func (s *Scope) Alive() bool {
	return s.alive.Load()
}

// OnClose registers an abort hook. Hooks registered after Close run immediately.
func (s *Scope) OnClose(fn func()) {
	s.mu.Lock()
	if !s.alive.Load() {
		s.mu.Unlock()
		fn()
		return
	}
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Close ends the scope. Safe to call more than once; only the first call
// runs the hooks.
func (s *Scope) Close() {
	s.mu.Lock()
	if !s.alive.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return
	}
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	s.cancel()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
