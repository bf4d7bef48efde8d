package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestIntervalFloor(t *testing.T) {
	s := New(time.Second)
	if s.interval != MinInterval {
		t.Errorf("interval = %v, want raised to %v", s.interval, MinInterval)
	}

	s = New(30 * time.Minute)
	if s.interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", s.interval)
	}
}

func TestRegisterUnregister(t *testing.T) {
	s := New(MinInterval)
	if s.Registered() {
		t.Fatal("fresh scheduler reports a registered job")
	}

	if err := s.Register(func(context.Context) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !s.Registered() {
		t.Fatal("Registered is false after Register")
	}

	// Re-registering replaces rather than stacking.
	if err := s.Register(func(context.Context) {}); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron has %d entries, want 1", got)
	}

	s.Unregister()
	if s.Registered() {
		t.Error("Registered is true after Unregister")
	}

	// Unregister twice is harmless.
	s.Unregister()
}

func TestStopWithoutStart(t *testing.T) {
	s := New(MinInterval)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on never-started scheduler: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s := New(MinInterval)
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // idempotent

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
