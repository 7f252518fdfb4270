package lifecycle_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()

	var started atomic.Int32
	for range 3 {
		lc.OnStartup(func() { started.Add(1) })
	}

	if lc.Ready() {
		t.Error("ready before startup completed")
	}

	lc.WaitForStartup()
	if !lc.Ready() || started.Load() != 3 {
		t.Errorf("ready = %v, hooks run = %d", lc.Ready(), started.Load())
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if lc.Ready() {
		t.Error("still ready after shutdown")
	}
}

func TestShutdown(t *testing.T) {
	tests := []struct {
		name    string
		hook    time.Duration
		timeout time.Duration
		wantErr bool
	}{
		{"hooks finish", 0, time.Second, false},
		{"hook overruns", 500 * time.Millisecond, 50 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := lifecycle.New()

			var cleaned atomic.Bool
			lc.OnShutdown(func() {
				<-lc.Context().Done()
				time.Sleep(tt.hook)
				cleaned.Store(true)
			})
			lc.WaitForStartup()

			err := lc.Shutdown(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Shutdown() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !cleaned.Load() {
				t.Error("shutdown hook did not run")
			}
			if lc.Context().Err() == nil {
				t.Error("context should be cancelled")
			}
		})
	}
}
