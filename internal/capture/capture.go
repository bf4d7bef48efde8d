// Package capture records and manages the safe-word samples themselves.
// Capturing a safe word always disables active listening first so the
// microphone and the stored slots cannot change underneath a running
// segment.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/provider/stt"
	"github.com/murmur-app/murmur/pkg/types"
)

// ErrWrongSession is returned by StopCapture when the live recording session
// was not started by StartCapture.
var ErrWrongSession = errors.New("capture: active session is not a safe-word capture")

// ListeningDisabler turns active listening off. Disabling must always
// succeed.
type ListeningDisabler interface {
	Disable(ctx context.Context)
}

// Controller records safe-word clips, transcribes them, and persists the
// result per slot. Safe for concurrent use.
type Controller struct {
	rec      *record.Manager
	stt      stt.Provider
	store    *store.Store
	listener ListeningDisabler

	mu sync.Mutex
}

// NewController creates a capture controller.
func NewController(rec *record.Manager, sp stt.Provider, st *store.Store, listener ListeningDisabler) *Controller {
	return &Controller{rec: rec, stt: sp, store: st, listener: listener}
}

// StartCapture disables listening and starts recording a safe word for the
// given slot. A listening segment still holding the microphone is discarded
// so the capture takes priority; another manual recording returns
// record.ErrSessionActive.
func (c *Controller) StartCapture(ctx context.Context, slot types.Slot) error {
	if !slot.IsValid() {
		return fmt.Errorf("capture: unknown slot %q", slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listener.Disable(ctx)
	if purpose, ok := c.rec.Active(); ok && purpose.Kind == record.KindListenSegment {
		c.rec.Discard(ctx)
	}
	return c.rec.Start(ctx, record.CapturePurpose(slot))
}

// StopCapture finalises the recording, transcribes it, and stores the
// stripped phrase with the clip path in the slot the capture was started
// for. The returned bool reports whether the slot was updated: when the
// transcription comes back empty, or the transcription service fails, the
// clip is removed and the slot keeps its previous value.
func (c *Controller) StopCapture(ctx context.Context) (types.SafeWord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if purpose, ok := c.rec.Active(); ok && purpose.Kind != record.KindCapture {
		return types.SafeWord{}, false, ErrWrongSession
	}

	clip, purpose, err := c.rec.Stop(ctx)
	if err != nil {
		return types.SafeWord{}, false, err
	}
	slot := purpose.Slot
	log := observe.Logger(ctx).With("slot", string(slot))

	wav, err := os.ReadFile(clip.Path)
	if err != nil {
		os.Remove(clip.Path)
		return types.SafeWord{}, false, fmt.Errorf("read capture clip: %w", err)
	}

	text, err := c.stt.Transcribe(ctx, wav)
	if err != nil {
		observe.DefaultMetrics().RecordServiceError(ctx, "stt", "capture")
		log.Warn("safe-word transcription failed, keeping previous value",
			"error", err)
		os.Remove(clip.Path)
		return types.SafeWord{}, false, nil
	}

	phrase := strings.TrimSpace(types.StripTriggerChars(text))
	if phrase == "" {
		log.Info("safe-word transcription empty, keeping previous value")
		os.Remove(clip.Path)
		return types.SafeWord{}, false, nil
	}

	prev, prevErr := c.store.SafeWord(ctx, slot)

	sw := types.SafeWord{Slot: slot, Phrase: phrase, AudioRef: clip.Path}
	if err := c.store.SetSafeWord(ctx, sw); err != nil {
		os.Remove(clip.Path)
		return types.SafeWord{}, false, err
	}

	// The slot now points at the new clip; drop the old audio file.
	if prevErr == nil && prev.AudioRef != "" && prev.AudioRef != clip.Path {
		os.Remove(prev.AudioRef)
	}

	log.Info("safe word updated", "phrase", phrase)
	return sw, true, nil
}

// RemoveSafeWord disables listening, clears the slot, and deletes its audio
// clip. Removing an empty slot is a no-op.
func (c *Controller) RemoveSafeWord(ctx context.Context, slot types.Slot) error {
	if !slot.IsValid() {
		return fmt.Errorf("capture: unknown slot %q", slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listener.Disable(ctx)

	sw, err := c.store.SafeWord(ctx, slot)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.store.ClearSafeWord(ctx, slot); err != nil {
		return err
	}
	if sw.AudioRef != "" {
		os.Remove(sw.AudioRef)
	}
	observe.Logger(ctx).Info("safe word removed", "slot", string(slot))
	return nil
}
