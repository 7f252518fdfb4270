package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/JaimeStill/mentor/pkg/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleRuns(t *testing.T) {
	var s timer.Slot
	done := make(chan struct{})

	s.Schedule(10*time.Millisecond, func() { close(done) })
	if !s.Pending() {
		t.Fatal("slot should be pending after Schedule")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}

	if s.Pending() {
		t.Error("slot should not be pending after callback ran")
	}
}

func TestScheduleReplaces(t *testing.T) {
	var s timer.Slot
	var first, second atomic.Int32
	done := make(chan struct{})

	s.Schedule(20*time.Millisecond, func() { first.Add(1) })
	s.Schedule(40*time.Millisecond, func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("replacement callback did not run")
	}
	time.Sleep(30 * time.Millisecond)

	if first.Load() != 0 {
		t.Error("superseded callback ran")
	}
	if second.Load() != 1 {
		t.Errorf("replacement ran %d times, want 1", second.Load())
	}
}

func TestCancel(t *testing.T) {
	var s timer.Slot
	var ran atomic.Bool

	s.Schedule(10*time.Millisecond, func() { ran.Store(true) })
	if !s.Cancel() {
		t.Error("Cancel should report a pending callback")
	}
	if s.Cancel() {
		t.Error("second Cancel should report nothing pending")
	}

	time.Sleep(40 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled callback ran")
	}
}
