// Package audio serializes speech output for one output device. Starting a
// new utterance always stops the current one first, so at most one utterance
// plays at a time no matter how many sessions share the manager.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
)

// Manager owns the output device. Create one per device and share it by
// reference with every session that speaks through that device.
type Manager struct {
	player capability.Player
	synth  capability.Synthesizer
	logger *slog.Logger

	mu        sync.Mutex
	available bool
	current   *playback
	wg        sync.WaitGroup
}

type playback struct {
	id     string
	cancel context.CancelFunc
	once   sync.Once
	onEnd  func(error)
}

func (p *playback) finish(err error) {
	p.once.Do(func() {
		if p.onEnd != nil {
			p.onEnd(err)
		}
	})
}

// New creates a Manager. synth may be nil when the player speaks text
// natively. A nil player makes the manager permanently unavailable.
func New(player capability.Player, synth capability.Synthesizer, logger *slog.Logger) *Manager {
	return &Manager{
		player:    player,
		synth:     synth,
		logger:    logger.With("system", "audio"),
		available: player != nil,
	}
}

// SetAvailable records whether the device can currently play audio.
// Disabling output stops the current utterance.
func (m *Manager) SetAvailable(available bool) {
	m.mu.Lock()
	m.available = available && m.player != nil
	m.mu.Unlock()

	if !available {
		m.StopAll()
	}
}

// Available reports whether speech output can be attempted.
func (m *Manager) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Speak stops any current utterance and plays text. onEnd is called exactly
// once: nil on natural completion, capability.ErrStopped when stopped,
// capability.ErrUnavailable (immediately) when output is unavailable, or the
// synthesis/playback error. The returned function stops this utterance only.
func (m *Manager) Speak(text string, onEnd func(error)) func() {
	m.mu.Lock()
	prev := m.current
	m.current = nil

	if !m.available || text == "" {
		m.mu.Unlock()
		m.stop(prev)
		p := &playback{onEnd: onEnd}
		if text == "" {
			p.finish(nil)
		} else {
			p.finish(capability.ErrUnavailable)
		}
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &playback{
		id:     uuid.NewString(),
		cancel: cancel,
		onEnd:  onEnd,
	}
	m.current = p
	m.wg.Add(1)
	m.mu.Unlock()

	m.stop(prev)

	go func() {
		defer m.wg.Done()
		err := m.play(ctx, p.id, text)
		m.release(p)
		p.finish(err)
	}()

	return func() { m.stopIfCurrent(p) }
}

// StopAll stops the current utterance, if any.
func (m *Manager) StopAll() {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	m.stop(prev)
}

// Speaking reports whether an utterance is playing.
func (m *Manager) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Close stops playback and waits for the playback goroutine to exit.
func (m *Manager) Close() {
	m.StopAll()
	m.wg.Wait()
}

func (m *Manager) play(ctx context.Context, id, text string) error {
	u := capability.Utterance{ID: id, Text: text}

	if m.synth != nil {
		audio, err := m.synth.Synthesize(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return capability.ErrStopped
			}
			m.logger.Warn("synthesis failed", "utterance", id, "error", err)
			return fmt.Errorf("synthesize: %w", err)
		}
		u.Audio = audio
	}

	if err := m.player.Play(ctx, u); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return capability.ErrStopped
		}
		m.logger.Warn("playback failed", "utterance", id, "error", err)
		return fmt.Errorf("play: %w", err)
	}

	if ctx.Err() != nil {
		return capability.ErrStopped
	}
	return nil
}

func (m *Manager) stop(p *playback) {
	if p == nil {
		return
	}
	p.cancel()
	p.finish(capability.ErrStopped)
}

func (m *Manager) stopIfCurrent(p *playback) {
	m.mu.Lock()
	if m.current != p {
		m.mu.Unlock()
		p.cancel()
		return
	}
	m.current = nil
	m.mu.Unlock()

	m.stop(p)
}

func (m *Manager) release(p *playback) {
	m.mu.Lock()
	if m.current == p {
		m.current = nil
	}
	m.mu.Unlock()
	p.cancel()
}
