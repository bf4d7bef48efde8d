// Package listen implements the segment pipeline at the heart of murmur:
// record a short segment, transcribe it, verify the speaker, match the
// transcript against the stored safe words, and dispatch an alert on a hit.
//
// Segments are independent. A failure anywhere in one segment abandons that
// segment only; the next one starts from scratch with fresh store reads, so
// safe words or contacts changed between segments take effect immediately.
package listen

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/provider/notify"
	"github.com/murmur-app/murmur/pkg/provider/speaker"
	"github.com/murmur-app/murmur/pkg/provider/stt"
	"github.com/murmur-app/murmur/pkg/types"
)

// Outcome classifies how one segment ended.
type Outcome string

const (
	// OutcomeNoMatch means the segment completed but no safe word was heard.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeRejectedSpeaker means a transcript was produced but speaker
	// verification did not confirm the enrolled voice.
	OutcomeRejectedSpeaker Outcome = "rejected_speaker"

	// OutcomeTriggered means a safe word matched and the alert was
	// dispatched.
	OutcomeTriggered Outcome = "triggered"

	// OutcomeError means a service failure or panic abandoned the segment.
	OutcomeError Outcome = "error"

	// OutcomeSkipped means the segment never started because the microphone
	// was busy.
	OutcomeSkipped Outcome = "skipped"
)

// Variant names which loop a segment ran under.
const (
	VariantForeground = "foreground"
	VariantBackground = "background"
)

// Mirror receives a best-effort copy of every recorded segment.
type Mirror interface {
	Send(clip []byte) error
}

// LocationSource supplies the last known device position. A nil fix is sent
// as a null location.
type LocationSource interface {
	Last() *types.Location
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMirror streams every segment's WAV to m. Send failures are logged and
// otherwise ignored.
func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// WithLocationSource attaches a source for the location included in alerts.
func WithLocationSource(src LocationSource) Option {
	return func(p *Pipeline) { p.location = src }
}

// WithSegmentDuration overrides the per-segment recording length.
func WithSegmentDuration(d time.Duration) Option {
	return func(p *Pipeline) { p.segmentDuration = d }
}

// WithPhoneticMatch enables the phonetic fallback with the given similarity
// threshold. Exact substring containment is always tried first.
func WithPhoneticMatch(threshold float64) Option {
	return func(p *Pipeline) {
		p.phonetic = true
		p.phoneticThreshold = threshold
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(met *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = met }
}

// Pipeline runs listening segments. Safe for concurrent use, though the
// recorder serialises actual microphone access.
type Pipeline struct {
	rec        *record.Manager
	stt        stt.Provider
	speaker    speaker.Provider
	dispatcher notify.Dispatcher
	store      *store.Store

	mirror   Mirror
	location LocationSource
	metrics  *observe.Metrics

	segmentDuration   time.Duration
	phonetic          bool
	phoneticThreshold float64
}

// NewPipeline assembles a segment pipeline from its collaborators.
func NewPipeline(rec *record.Manager, sp stt.Provider, ver speaker.Provider, d notify.Dispatcher, st *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		rec:             rec,
		stt:             sp,
		speaker:         ver,
		dispatcher:      d,
		store:           st,
		segmentDuration: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// RunForeground runs segments back to back until ctx is cancelled or enabled
// reports false. The enabled check happens between segments, never inside
// one; a segment in flight always completes.
func (p *Pipeline) RunForeground(ctx context.Context, enabled func() bool) {
	for ctx.Err() == nil && enabled() {
		outcome := p.RunSegment(ctx, VariantForeground)
		if outcome == OutcomeError || outcome == OutcomeSkipped {
			// Back off briefly so a persistent failure does not spin.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// RunBackgroundSegment runs a single segment for the background task. When
// the microphone is already held by a foreground segment or a manual
// recording, the invocation is a no-op.
func (p *Pipeline) RunBackgroundSegment(ctx context.Context) Outcome {
	return p.RunSegment(ctx, VariantBackground)
}

// RunSegment executes one full record→transcribe→verify→match→trigger cycle
// and records its outcome. Panics inside the cycle are contained to the
// segment.
func (p *Pipeline) RunSegment(ctx context.Context, variant string) (outcome Outcome) {
	ctx, span := observe.StartSpan(ctx, "listen.segment")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("segment panicked", "panic", r)
			outcome = OutcomeError
		}
		p.metrics.SegmentDuration.Record(ctx, time.Since(start).Seconds())
		p.metrics.RecordSegment(ctx, variant, string(outcome))
		span.End()
	}()

	log := observe.Logger(ctx).With("variant", variant)

	wav, err := p.rec.RecordFor(ctx, p.segmentDuration, record.SegmentPurpose())
	if errors.Is(err, record.ErrSessionActive) {
		log.Debug("microphone busy, segment skipped")
		return OutcomeSkipped
	}
	if err != nil {
		log.Warn("segment recording failed", "error", err)
		return OutcomeError
	}
	if p.mirror != nil {
		if err := p.mirror.Send(wav); err != nil {
			p.metrics.RecordServiceError(ctx, "uplink", "send")
			log.Debug("segment mirror send failed", "error", err)
		}
	}

	words, err := p.store.SafeWords(ctx)
	if err != nil {
		log.Warn("reading safe words failed", "error", err)
		return OutcomeError
	}

	transcript, err := p.transcribe(ctx, wav)
	if err != nil {
		p.metrics.RecordServiceError(ctx, "stt", "segment")
		log.Warn("segment transcription failed", "error", err)
		return OutcomeError
	}
	normalized := types.NormalizePhrase(transcript)
	if normalized == "" {
		return OutcomeNoMatch
	}

	ok, err := p.verify(ctx, wav)
	if err != nil {
		p.metrics.RecordServiceError(ctx, "speaker", "segment")
		log.Warn("speaker verification failed", "error", err)
		return OutcomeError
	}
	if !ok {
		log.Info("speech rejected, speaker not verified")
		return OutcomeRejectedSpeaker
	}

	slot, matched := p.match(normalized, words)
	if !matched {
		return OutcomeNoMatch
	}

	if err := p.trigger(ctx, slot); err != nil {
		p.metrics.RecordServiceError(ctx, "dispatch", "segment")
		log.Error("alert dispatch failed", "slot", string(slot), "error", err)
		return OutcomeError
	}
	log.Info("safe word triggered", "slot", string(slot))
	return OutcomeTriggered
}

func (p *Pipeline) transcribe(ctx context.Context, wav []byte) (string, error) {
	start := time.Now()
	text, err := p.stt.Transcribe(ctx, wav)
	p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	return text, err
}

func (p *Pipeline) verify(ctx context.Context, wav []byte) (bool, error) {
	start := time.Now()
	ok, err := p.speaker.Verify(ctx, wav)
	p.metrics.VerificationDuration.Record(ctx, time.Since(start).Seconds())
	return ok, err
}

// match tests the normalized transcript against each usable safe word in
// precedence order: the emergency word always wins when both are contained.
func (p *Pipeline) match(normalized string, words []types.SafeWord) (types.Slot, bool) {
	bySlot := make(map[types.Slot]types.SafeWord, len(words))
	for _, w := range words {
		bySlot[w.Slot] = w
	}
	for _, slot := range types.Slots() {
		w, ok := bySlot[slot]
		if !ok || !w.Usable() {
			continue
		}
		if p.phraseMatches(normalized, types.NormalizePhrase(w.Phrase)) {
			return slot, true
		}
	}
	return "", false
}

// phraseMatches reports whether phrase occurs in transcript. Containment is
// the primary test; when phonetic matching is enabled, word windows of the
// transcript are additionally compared by metaphone code and Jaro-Winkler
// similarity to tolerate transcription drift.
func (p *Pipeline) phraseMatches(transcript, phrase string) bool {
	if phrase == "" {
		return false
	}
	if strings.Contains(transcript, phrase) {
		return true
	}
	if !p.phonetic {
		return false
	}

	tw := strings.Fields(transcript)
	pw := strings.Fields(phrase)
	if len(pw) == 0 || len(tw) < len(pw) {
		return false
	}
	for i := 0; i+len(pw) <= len(tw); i++ {
		window := tw[i : i+len(pw)]
		if phoneticEqual(window, pw) {
			return true
		}
		if matchr.JaroWinkler(strings.Join(window, " "), phrase, true) >= p.phoneticThreshold {
			return true
		}
	}
	return false
}

// phoneticEqual reports whether two word sequences share primary metaphone
// codes position by position.
func phoneticEqual(a, b []string) bool {
	for i := range a {
		ca, _ := matchr.DoubleMetaphone(a[i])
		cb, _ := matchr.DoubleMetaphone(b[i])
		if ca == "" || ca != cb {
			return false
		}
	}
	return true
}

// trigger dispatches an alert for slot to the contacts whose priority
// matches, with the last known location attached.
func (p *Pipeline) trigger(ctx context.Context, slot types.Slot) error {
	contacts, err := p.store.ContactsByPriority(ctx, slot.ContactPriority())
	if err != nil {
		return err
	}

	var loc *types.Location
	if p.location != nil {
		loc = p.location.Last()
	}

	start := time.Now()
	err = p.dispatcher.Dispatch(ctx, slot, contacts, loc)
	p.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	p.metrics.Triggers.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("slot", string(slot))))
	return nil
}
