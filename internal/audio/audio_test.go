package audio_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/JaimeStill/mentor/internal/audio"
	"github.com/JaimeStill/mentor/internal/capability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingPlayer plays until released or cancelled and records how many
// utterances are active at once.
type blockingPlayer struct {
	mu      sync.Mutex
	active  int
	peak    int
	played  []string
	release chan struct{}
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{release: make(chan struct{})}
}

func (p *blockingPlayer) Play(ctx context.Context, u capability.Utterance) error {
	p.mu.Lock()
	p.active++
	p.peak = max(p.peak, p.active)
	p.played = append(p.played, u.Text)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func recorder() (func(error), <-chan error) {
	ch := make(chan error, 4)
	return func(err error) { ch <- err }, ch
}

func receive(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("onEnd not called")
		return nil
	}
}

func TestSpeakStopsCurrent(t *testing.T) {
	player := newBlockingPlayer()
	m := audio.New(player, nil, discard())
	defer m.Close()

	first, firstEnd := recorder()
	second, secondEnd := recorder()

	m.Speak("one", first)
	m.Speak("two", second)

	if err := receive(t, firstEnd); !errors.Is(err, capability.ErrStopped) {
		t.Errorf("first onEnd = %v, want ErrStopped", err)
	}

	close(player.release)
	if err := receive(t, secondEnd); err != nil {
		t.Errorf("second onEnd = %v, want nil", err)
	}

	m.Close()
	player.mu.Lock()
	defer player.mu.Unlock()
	if player.peak > 1 {
		t.Errorf("peak concurrent utterances = %d, want 1", player.peak)
	}
}

func TestSpeakUnavailable(t *testing.T) {
	m := audio.New(nil, nil, discard())

	onEnd, ended := recorder()
	m.Speak("hello", onEnd)

	select {
	case err := <-ended:
		if !errors.Is(err, capability.ErrUnavailable) {
			t.Errorf("onEnd = %v, want ErrUnavailable", err)
		}
	default:
		t.Fatal("onEnd should be called synchronously when unavailable")
	}
}

func TestStopCalledOnce(t *testing.T) {
	player := newBlockingPlayer()
	m := audio.New(player, nil, discard())

	var mu sync.Mutex
	calls := 0
	stop := m.Speak("hello", func(error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	stop()
	stop()
	m.StopAll()
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("onEnd called %d times, want 1", calls)
	}
	if m.Speaking() {
		t.Error("manager should be idle after stop")
	}
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, string) ([]byte, error) {
	return nil, errors.New("network down")
}

func TestSynthesisFailureEnds(t *testing.T) {
	m := audio.New(newBlockingPlayer(), failingSynth{}, discard())
	defer m.Close()

	onEnd, ended := recorder()
	m.Speak("hello", onEnd)

	err := receive(t, ended)
	if err == nil || errors.Is(err, capability.ErrStopped) {
		t.Errorf("onEnd = %v, want synthesis error", err)
	}
}
