package enroll

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/audio/mock"
	speakermock "github.com/murmur-app/murmur/pkg/provider/speaker/mock"
)

var testPhrases = [PhraseCount]string{
	"the quick brown fox",
	"pack my box with jugs",
	"five boxing wizards jump",
}

type disablerSpy struct {
	mu    sync.Mutex
	calls int
}

func (d *disablerSpy) Disable(context.Context) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
}

func (d *disablerSpy) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func newTestController(t *testing.T, sp *speakermock.Provider) (*Controller, *store.Store, *disablerSpy, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dir := t.TempDir()
	rec := record.NewManager(&mock.Device{PCM: mock.Tone(3200)}, dir)
	spy := &disablerSpy{}
	return NewController(rec, sp, st, spy, testPhrases), st, spy, dir
}

// toggle runs one start/stop pair for the current phrase.
func toggle(t *testing.T, c *Controller) Status {
	t.Helper()
	ctx := context.Background()
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Fatalf("start phrase recording: %v", err)
	}
	s, err := c.RecordCurrentPhrase(ctx)
	if err != nil {
		t.Fatalf("stop phrase recording: %v", err)
	}
	return s
}

func TestFullEnrollmentFlow(t *testing.T) {
	sp := &speakermock.Provider{VectorRef: "vec-1"}
	c, st, _, dir := newTestController(t, sp)
	ctx := context.Background()

	c.Begin(ctx)
	if s := c.Status(ctx); s.Phrase != testPhrases[0] || s.Enrolled {
		t.Fatalf("initial status = %+v", s)
	}

	for i := 0; i < PhraseCount; i++ {
		s := toggle(t, c)
		if i < PhraseCount-1 && s.PhraseIndex != i+1 {
			t.Errorf("after phrase %d: index = %d, want %d", i, s.PhraseIndex, i+1)
		}
	}

	if len(sp.EnrollCalls) != 1 {
		t.Fatalf("Enroll called %d times, want 1", len(sp.EnrollCalls))
	}
	for i, clip := range sp.EnrollCalls[0] {
		if len(clip) == 0 {
			t.Errorf("uploaded clip %d is empty", i)
		}
	}

	ref, err := st.VoicePrint(ctx)
	if err != nil {
		t.Fatalf("VoicePrint: %v", err)
	}
	if ref != "vec-1" {
		t.Errorf("stored voice print = %q, want %q", ref, "vec-1")
	}

	// Clip files are cleaned up after a successful upload.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("clips dir has %d entries after enrollment, want 0", len(entries))
	}

	if s := c.Status(ctx); !s.Enrolled {
		t.Error("status not Enrolled after successful flow")
	}
}

func TestFailedUploadResetsFlow(t *testing.T) {
	sp := &speakermock.Provider{EnrollErr: errors.New("service down")}
	c, st, _, dir := newTestController(t, sp)
	ctx := context.Background()

	c.Begin(ctx)
	for i := 0; i < PhraseCount-1; i++ {
		toggle(t, c)
	}

	// Final toggle triggers the upload, which fails.
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Fatalf("start final phrase: %v", err)
	}
	s, err := c.RecordCurrentPhrase(ctx)
	if err == nil {
		t.Fatal("final phrase stop succeeded despite upload failure")
	}

	// The whole flow resets: back to phrase zero, no voice print, no files.
	if s.PhraseIndex != 0 || s.Recording {
		t.Errorf("status after failed upload = %+v, want phrase 0, not recording", s)
	}
	if _, err := st.VoicePrint(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("voice print after failed upload: err = %v, want ErrNotFound", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("clips dir has %d entries after failed upload, want 0", len(entries))
	}
}

func TestRecordAfterCompleteFlow(t *testing.T) {
	sp := &speakermock.Provider{VectorRef: "vec-2"}
	c, _, _, _ := newTestController(t, sp)
	ctx := context.Background()

	c.Begin(ctx)
	for i := 0; i < PhraseCount; i++ {
		toggle(t, c)
	}

	// A successful upload resets to a fresh flow; Enrolled reports completion.
	if s := c.Status(ctx); !s.Enrolled || s.PhraseIndex != 0 {
		t.Fatalf("status after completion = %+v, want enrolled at phrase 0", s)
	}
	s, err := c.RecordCurrentPhrase(ctx)
	if err != nil {
		t.Fatalf("RecordCurrentPhrase after completion: %v", err)
	}
	if !s.Recording || s.PhraseIndex != 0 {
		t.Errorf("re-enrollment status = %+v, want recording phrase 0", s)
	}
}

func TestRecordingSuspendsListening(t *testing.T) {
	sp := &speakermock.Provider{}
	c, _, spy, _ := newTestController(t, sp)
	ctx := context.Background()

	c.Begin(ctx)
	before := spy.count()
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Fatalf("start phrase recording: %v", err)
	}
	if spy.count() != before+1 {
		t.Errorf("listening disabled %d times on start, want %d", spy.count(), before+1)
	}

	// Stopping the phrase does not touch listening again.
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Fatalf("stop phrase recording: %v", err)
	}
	if spy.count() != before+1 {
		t.Errorf("listening disabled %d times after stop, want %d", spy.count(), before+1)
	}
}

func TestBeginDiscardsInProgressRecording(t *testing.T) {
	sp := &speakermock.Provider{}
	c, _, _, _ := newTestController(t, sp)
	ctx := context.Background()

	c.Begin(ctx)
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Fatalf("start phrase recording: %v", err)
	}
	c.Begin(ctx)

	// The microphone is free again after the reset.
	if _, err := c.RecordCurrentPhrase(ctx); err != nil {
		t.Errorf("start after reset: %v", err)
	}
}
