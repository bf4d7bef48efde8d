package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/murmur-app/murmur/pkg/types"
)

func TestStaticProvider(t *testing.T) {
	p := Static{Loc: types.Location{Latitude: 48.1, Longitude: 11.5}}
	loc, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if loc == nil || *loc != p.Loc {
		t.Errorf("Current = %v, want %v", loc, p.Loc)
	}
}

func TestTrackerCachesLastFix(t *testing.T) {
	calls := 0
	p := ProviderFunc(func(context.Context) (*types.Location, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("gps lost")
		}
		return &types.Location{Latitude: 1, Longitude: 2}, nil
	})

	tr := NewTracker(p, time.Hour)
	if tr.Last() != nil {
		t.Fatal("Last is non-nil before any poll")
	}

	tr.poll(context.Background())
	first := tr.Last()
	if first == nil || first.Latitude != 1 {
		t.Fatalf("Last after first poll = %v", first)
	}

	// A failed poll keeps the previous fix.
	tr.poll(context.Background())
	second := tr.Last()
	if second == nil || *second != *first {
		t.Errorf("Last after failed poll = %v, want %v", second, first)
	}
}

func TestTrackerRunStopsOnCancel(t *testing.T) {
	p := ProviderFunc(func(context.Context) (*types.Location, error) {
		return &types.Location{}, nil
	})
	tr := NewTracker(p, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
