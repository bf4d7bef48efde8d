// Package enroll drives voice-print enrollment: the user reads three fixed
// phrases, each recorded as its own clip, and the three clips are uploaded
// together to the speaker service. Starting a phrase recording disables
// active listening first, like a safe-word capture. Enrollment is
// all-or-nothing; a failed upload resets the whole flow and leaves no
// partial state behind.
package enroll

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/provider/speaker"
)

// PhraseCount is the number of enrollment phrases the speaker service
// expects.
const PhraseCount = 3

// ListeningDisabler turns active listening off. Disabling must always
// succeed.
type ListeningDisabler interface {
	Disable(ctx context.Context)
}

// Status is a snapshot of the enrollment flow for the control API.
type Status struct {
	// Enrolled reports whether a voice print is stored.
	Enrolled bool `json:"enrolled"`

	// PhraseIndex is the 0-based index of the phrase being worked on.
	PhraseIndex int `json:"phraseIndex"`

	// Phrase is the text the user should read next.
	Phrase string `json:"phrase,omitempty"`

	// Recording reports whether a phrase recording is in progress.
	Recording bool `json:"recording"`
}

// Controller owns the enrollment flow state. Safe for concurrent use.
type Controller struct {
	rec      *record.Manager
	speaker  speaker.Provider
	store    *store.Store
	listener ListeningDisabler
	phrases  [PhraseCount]string

	mu        sync.Mutex
	idx       int
	recording bool
	clips     [PhraseCount][]byte
	clipPaths []string
}

// NewController creates an enrollment controller. phrases must hold the
// three texts the user reads, in order.
func NewController(rec *record.Manager, sp speaker.Provider, st *store.Store, listener ListeningDisabler, phrases [PhraseCount]string) *Controller {
	return &Controller{rec: rec, speaker: sp, store: st, listener: listener, phrases: phrases}
}

// Begin disables listening and resets the flow to phrase zero, discarding
// any clips captured so far. An in-progress phrase recording is discarded
// too.
func (c *Controller) Begin(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener.Disable(ctx)
	if c.recording {
		c.rec.Discard(ctx)
	}
	c.reset()
}

// reset clears the accumulator and removes any clip files already written.
// Must be called with c.mu held.
func (c *Controller) reset() {
	for _, p := range c.clipPaths {
		os.Remove(p)
	}
	c.idx = 0
	c.recording = false
	c.clips = [PhraseCount][]byte{}
	c.clipPaths = nil
}

// RecordCurrentPhrase toggles recording of the current phrase. The first
// call disables listening and starts the microphone; the second stops it
// and banks the clip. When the third clip is banked the controller uploads
// all three to the speaker service, stores the returned voice print, and
// deletes the clip files. Success and failure both reset to a fresh flow;
// Status.Enrolled reports whether a voice print is stored.
func (c *Controller) RecordCurrentPhrase(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording {
		c.listener.Disable(ctx)
		if err := c.rec.Start(ctx, record.EnrollmentPurpose(c.idx)); err != nil {
			return c.statusLocked(ctx), err
		}
		c.recording = true
		return c.statusLocked(ctx), nil
	}

	clip, _, err := c.rec.Stop(ctx)
	c.recording = false
	if err != nil {
		return c.statusLocked(ctx), err
	}
	wav, err := os.ReadFile(clip.Path)
	if err != nil {
		os.Remove(clip.Path)
		return c.statusLocked(ctx), fmt.Errorf("read enrollment clip: %w", err)
	}
	c.clips[c.idx] = wav
	c.clipPaths = append(c.clipPaths, clip.Path)
	c.idx++

	if c.idx < PhraseCount {
		return c.statusLocked(ctx), nil
	}

	err = c.finishLocked(ctx)
	c.reset()
	return c.statusLocked(ctx), err
}

// finishLocked uploads the three clips and persists the returned voice
// print. Must be called with c.mu held.
func (c *Controller) finishLocked(ctx context.Context) error {
	ref, err := c.speaker.Enroll(ctx, c.clips)
	if err != nil {
		observe.DefaultMetrics().RecordServiceError(ctx, "speaker", "enroll")
		return fmt.Errorf("upload enrollment clips: %w", err)
	}
	if err := c.store.SetVoicePrint(ctx, ref); err != nil {
		return err
	}
	observe.Logger(ctx).Info("voice print enrolled")
	return nil
}

// Status returns a snapshot of the enrollment flow.
func (c *Controller) Status(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(ctx)
}

func (c *Controller) statusLocked(ctx context.Context) Status {
	s := Status{
		PhraseIndex: c.idx,
		Recording:   c.recording,
	}
	if c.idx < PhraseCount {
		s.Phrase = c.phrases[c.idx]
	}
	if _, err := c.store.VoicePrint(ctx); err == nil {
		s.Enrolled = true
	}
	return s
}
