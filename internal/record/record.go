// Package record owns the single microphone session. Exactly one recording
// can be live at a time, whatever started it: an enrollment phrase, a
// safe-word capture, or a listening segment. The manager enforces that
// exclusivity and turns raw PCM into finalised WAV clips.
package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/pkg/audio"
	"github.com/murmur-app/murmur/pkg/types"
)

var (
	// ErrSessionActive is returned by Start when a recording session is
	// already live.
	ErrSessionActive = errors.New("record: a recording session is already active")

	// ErrNoActiveSession is returned by Stop when no recording session is
	// live.
	ErrNoActiveSession = errors.New("record: no active recording session")
)

// PurposeKind names what a recording session is for.
type PurposeKind string

const (
	KindEnrollment    PurposeKind = "enrollment"
	KindCapture       PurposeKind = "capture"
	KindListenSegment PurposeKind = "segment"
)

// Purpose describes why a recording session was started. The coordinator and
// the API surface use it to answer "what is the microphone doing right now".
type Purpose struct {
	Kind PurposeKind

	// PhraseIndex is the 0-based enrollment phrase index. Only meaningful
	// for KindEnrollment.
	PhraseIndex int

	// Slot is the safe-word slot being captured. Only meaningful for
	// KindCapture.
	Slot types.Slot
}

// EnrollmentPurpose tags a session recording enrollment phrase i (0-based).
func EnrollmentPurpose(i int) Purpose {
	return Purpose{Kind: KindEnrollment, PhraseIndex: i}
}

// CapturePurpose tags a session recording a safe word for the given slot.
func CapturePurpose(slot types.Slot) Purpose {
	return Purpose{Kind: KindCapture, Slot: slot}
}

// SegmentPurpose tags a session recording one listening segment.
func SegmentPurpose() Purpose {
	return Purpose{Kind: KindListenSegment}
}

// session is one live recording. The drain goroutine owns buf until done is
// closed.
type session struct {
	purpose Purpose
	capture audio.Capture

	buf  bytes.Buffer
	done chan struct{}
}

// Manager serialises access to the audio device and finalises recordings as
// WAV clips under a clips directory. Safe for concurrent use.
type Manager struct {
	device   audio.Device
	clipsDir string
	format   audio.Format
	metrics  *observe.Metrics

	mu     sync.Mutex
	active *session
}

// Option customises a Manager.
type Option func(*Manager)

// WithFormat overrides the capture format. Defaults to audio.DefaultFormat.
func WithFormat(f audio.Format) Option {
	return func(m *Manager) { m.format = f }
}

// WithMetrics sets the metrics instance used for the recording gauge.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = met }
}

// NewManager creates a Manager that records from device and writes finalised
// clips into clipsDir.
func NewManager(device audio.Device, clipsDir string, opts ...Option) *Manager {
	m := &Manager{
		device:   device,
		clipsDir: clipsDir,
		format:   audio.DefaultFormat,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Start opens the audio device and begins draining PCM into an in-memory
// buffer. Returns ErrSessionActive when another session is live.
func (m *Manager) Start(ctx context.Context, purpose Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return ErrSessionActive
	}

	capture, err := m.device.Open(ctx, m.format)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}

	s := &session{
		purpose: purpose,
		capture: capture,
		done:    make(chan struct{}),
	}
	go s.drain()

	m.active = s
	m.metrics.RecordingActive.Add(ctx, 1)
	observe.Logger(ctx).Info("recording started",
		"kind", string(purpose.Kind))
	return nil
}

// drain accumulates PCM chunks until the capture's channel closes.
func (s *session) drain() {
	defer close(s.done)
	for chunk := range s.capture.Chunks() {
		s.buf.Write(chunk)
	}
}

// Stop ends the active session and finalises the recording as a WAV clip in
// the clips directory. Returns the clip and the purpose the session was
// started with. Returns ErrNoActiveSession when nothing is recording.
func (m *Manager) Stop(ctx context.Context) (types.Clip, Purpose, error) {
	pcm, purpose, err := m.stop(ctx)
	if err != nil {
		return types.Clip{}, Purpose{}, err
	}

	id := uuid.NewString()
	path := filepath.Join(m.clipsDir, id+".wav")
	if err := os.MkdirAll(m.clipsDir, 0o755); err != nil {
		return types.Clip{}, purpose, fmt.Errorf("create clips dir: %w", err)
	}
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, m.format), 0o644); err != nil {
		return types.Clip{}, purpose, fmt.Errorf("write clip: %w", err)
	}

	clip := types.Clip{
		ID:       id,
		Path:     path,
		Duration: audio.PCMDuration(pcm, m.format),
	}
	observe.Logger(ctx).Info("recording finalised",
		"kind", string(purpose.Kind),
		"clip", clip.ID,
		"duration", clip.Duration)
	return clip, purpose, nil
}

// Discard ends the active session without writing a clip. Reports whether a
// session was actually discarded; discarding with nothing live is a no-op.
func (m *Manager) Discard(ctx context.Context) bool {
	_, purpose, err := m.stop(ctx)
	if err != nil {
		return false
	}
	observe.Logger(ctx).Info("recording discarded",
		"kind", string(purpose.Kind))
	return true
}

// stop closes the capture, waits for the drain goroutine, and returns the
// accumulated PCM.
func (m *Manager) stop(ctx context.Context) ([]byte, Purpose, error) {
	m.mu.Lock()
	s := m.active
	if s == nil {
		m.mu.Unlock()
		return nil, Purpose{}, ErrNoActiveSession
	}
	m.active = nil
	m.mu.Unlock()

	closeErr := s.capture.Close()
	<-s.done
	m.metrics.RecordingActive.Add(ctx, -1)

	if closeErr != nil {
		observe.Logger(ctx).Warn("closing audio capture failed",
			"error", closeErr)
	}
	return s.buf.Bytes(), s.purpose, nil
}

// Active returns the purpose of the live session, if any.
func (m *Manager) Active() (Purpose, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Purpose{}, false
	}
	return m.active.purpose, true
}

// RecordFor records a fixed-length segment and returns it as in-memory WAV
// bytes without writing a clip file. The recording runs for d unless ctx is
// cancelled first, in which case whatever was captured so far is returned
// along with ctx's error.
func (m *Manager) RecordFor(ctx context.Context, d time.Duration, purpose Purpose) ([]byte, error) {
	if err := m.Start(ctx, purpose); err != nil {
		return nil, err
	}

	var ctxErr error
	select {
	case <-time.After(d):
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	pcm, _, err := m.stop(ctx)
	if err != nil {
		return nil, err
	}
	if ctxErr != nil {
		return audio.EncodeWAV(pcm, m.format), ctxErr
	}
	return audio.EncodeWAV(pcm, m.format), nil
}
