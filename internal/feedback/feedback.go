// Package feedback manages the transient on-screen life of a verdict and
// the completion record written when a whiteboard session finalizes.
package feedback

import (
	"sync"
	"time"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
	"github.com/JaimeStill/mentor/pkg/timer"
)

// Presenter renders feedback artifacts.
type Presenter interface {
	ShowFeedback(v analysis.Verdict)
	HideFeedback()
	ShowHighlight(r analysis.Region)
	ClearHighlight()
}

// Config holds the display windows.
type Config struct {
	Dismiss      time.Duration
	Highlight    time.Duration
	MaxHighlight float64
}

// Manager keeps at most one feedback artifact and one highlight visible,
// each with its own single-slot auto-dismiss timer.
type Manager struct {
	scope     *lifecycle.Scope
	presenter Presenter
	cfg       Config

	dismiss   timer.Slot
	highlight timer.Slot

	mu          sync.Mutex
	visible     bool
	highlighted bool
}

// NewManager creates a Manager whose timers are cancelled when scope closes.
func NewManager(scope *lifecycle.Scope, presenter Presenter, cfg Config) *Manager {
	m := &Manager{
		scope:     scope,
		presenter: presenter,
		cfg:       cfg,
	}
	scope.OnClose(m.cancel)
	return m
}

// Show displays v and restarts the dismiss timer. A highlight is shown for
// the shorter highlight window when v carries a region below the maximum area.
func (m *Manager) Show(v analysis.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scope.Alive() {
		return
	}

	m.dismiss.Schedule(m.cfg.Dismiss, m.expire)
	m.visible = true
	m.presenter.ShowFeedback(v)

	if v.Region != nil && v.Region.Area() < m.cfg.MaxHighlight {
		m.highlight.Schedule(m.cfg.Highlight, m.clearHighlight)
		m.highlighted = true
		m.presenter.ShowHighlight(*v.Region)
	}
}

// Dismiss hides the feedback artifact immediately and cancels its timer.
// Persisted history is unaffected.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dismiss.Cancel()
	if m.visible && m.scope.Alive() {
		m.presenter.HideFeedback()
	}
	m.visible = false
}

// Visible reports whether a feedback artifact is on screen.
func (m *Manager) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Highlighted reports whether a highlight region is on screen.
func (m *Manager) Highlighted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highlighted
}

func (m *Manager) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.visible || !m.scope.Alive() {
		return
	}
	m.visible = false
	m.presenter.HideFeedback()
}

func (m *Manager) clearHighlight() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.highlighted || !m.scope.Alive() {
		return
	}
	m.highlighted = false
	m.presenter.ClearHighlight()
}

func (m *Manager) cancel() {
	m.dismiss.Cancel()
	m.highlight.Cancel()

	m.mu.Lock()
	m.visible = false
	m.highlighted = false
	m.mu.Unlock()
}
