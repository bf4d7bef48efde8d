package record

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/murmur-app/murmur/pkg/audio"
	"github.com/murmur-app/murmur/pkg/audio/mock"
)

func TestStartStopProducesClip(t *testing.T) {
	dir := t.TempDir()
	pcm := mock.Tone(32000) // 1 second at 16 kHz mono.
	dev := &mock.Device{PCM: pcm}
	m := NewManager(dev, dir)
	ctx := context.Background()

	if err := m.Start(ctx, CapturePurpose("redFlag")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := m.Active(); !ok {
		t.Fatal("Active reports no session while recording")
	}

	clip, purpose, err := m.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if purpose.Kind != KindCapture || purpose.Slot != "redFlag" {
		t.Errorf("purpose = %+v, want capture/redFlag", purpose)
	}
	if clip.Duration != time.Second {
		t.Errorf("clip duration = %v, want 1s", clip.Duration)
	}

	wav, err := os.ReadFile(clip.Path)
	if err != nil {
		t.Fatalf("read clip file: %v", err)
	}
	got, format, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if format != audio.DefaultFormat {
		t.Errorf("clip format = %+v, want default", format)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("clip PCM does not match recorded audio")
	}

	if _, ok := m.Active(); ok {
		t.Error("Active reports a session after Stop")
	}
}

func TestStartWhileActive(t *testing.T) {
	dev := &mock.Device{PCM: mock.Tone(3200)}
	m := NewManager(dev, t.TempDir())
	ctx := context.Background()

	if err := m.Start(ctx, SegmentPurpose()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := m.Start(ctx, EnrollmentPurpose(0))
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start: got err %v, want ErrSessionActive", err)
	}
	if len(dev.OpenCalls) != 1 {
		t.Errorf("device opened %d times, want 1", len(dev.OpenCalls))
	}
}

func TestStopWithoutActive(t *testing.T) {
	m := NewManager(&mock.Device{}, t.TempDir())
	if _, _, err := m.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("Stop: got err %v, want ErrNoActiveSession", err)
	}
}

func TestDiscardWritesNoClip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(&mock.Device{PCM: mock.Tone(3200)}, dir)
	ctx := context.Background()

	if m.Discard(ctx) {
		t.Error("Discard with no session reported a discard")
	}

	if err := m.Start(ctx, EnrollmentPurpose(1)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Discard(ctx) {
		t.Error("Discard with a live session reported nothing discarded")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("clips dir has %d entries after discard, want 0", len(entries))
	}

	// The slot is free again.
	if err := m.Start(ctx, SegmentPurpose()); err != nil {
		t.Errorf("Start after discard: %v", err)
	}
}

func TestRecordFor(t *testing.T) {
	pcm := mock.Tone(6400)
	m := NewManager(&mock.Device{PCM: pcm}, t.TempDir())

	wav, err := m.RecordFor(context.Background(), 20*time.Millisecond, SegmentPurpose())
	if err != nil {
		t.Fatalf("RecordFor: %v", err)
	}
	got, _, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("segment PCM does not match device audio")
	}
	if _, ok := m.Active(); ok {
		t.Error("session still active after RecordFor")
	}
}

func TestRecordForWhileActive(t *testing.T) {
	m := NewManager(&mock.Device{PCM: mock.Tone(3200)}, t.TempDir())
	ctx := context.Background()

	if err := m.Start(ctx, CapturePurpose("emergency")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := m.RecordFor(ctx, 10*time.Millisecond, SegmentPurpose())
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("RecordFor: got err %v, want ErrSessionActive", err)
	}
}
