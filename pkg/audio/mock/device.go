// Package mock provides in-memory test doubles for the [audio.Device] and
// [audio.Capture] interfaces.
//
// All mocks are safe for concurrent use. They record every call so that tests
// can assert on call counts and arguments, and expose exported fields the test
// can set to control behaviour.
//
// Typical usage:
//
//	dev := &mock.Device{PCM: mock.Tone(3200)}
//	cap, _ := dev.Open(ctx, audio.DefaultFormat)
//	for chunk := range cap.Chunks() { ... }
package mock

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/murmur-app/murmur/pkg/audio"
)

// OpenCall records a single invocation of Device.Open.
type OpenCall struct {
	// Format is the capture format passed to Open.
	Format audio.Format
}

// Device is a mock implementation of [audio.Device]. Each Open delivers PCM
// (split into chunks of ChunkSize bytes) and then leaves the channel open
// until the capture is closed, mimicking a live microphone.
type Device struct {
	mu sync.Mutex

	// PCM is the audio payload delivered by each capture.
	PCM []byte

	// ChunkSize is the delivery granularity. Defaults to 3200 bytes (100 ms
	// at 16 kHz mono 16-bit).
	ChunkSize int

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// ExclusiveDevice, when true, makes Open fail while a previous capture
	// is still live, mirroring real hardware.
	ExclusiveDevice bool

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall

	liveCaptures int
}

// Compile-time assertion that Device implements audio.Device.
var _ audio.Device = (*Device)(nil)

// Open records the call and returns a scripted capture.
func (d *Device) Open(ctx context.Context, format audio.Format) (audio.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, OpenCall{Format: format})
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.ExclusiveDevice && d.liveCaptures > 0 {
		return nil, errors.New("mock: capture already live")
	}
	d.liveCaptures++

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 3200
	}

	c := &Capture{
		ChunksCh: make(chan []byte, len(d.PCM)/chunkSize+1),
		onClose: func() {
			d.mu.Lock()
			d.liveCaptures--
			d.mu.Unlock()
		},
	}
	for off := 0; off < len(d.PCM); off += chunkSize {
		end := min(off+chunkSize, len(d.PCM))
		c.ChunksCh <- d.PCM[off:end]
	}
	return c, nil
}

// LiveCaptures returns the number of captures opened and not yet closed.
func (d *Device) LiveCaptures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveCaptures
}

// Capture is a mock implementation of [audio.Capture].
type Capture struct {
	// ChunksCh is the channel returned by Chunks. Tests may pre-fill it or
	// send on it directly.
	ChunksCh chan []byte

	once    sync.Once
	onClose func()

	mu         sync.Mutex
	CloseCount int
}

// Compile-time assertion that Capture implements audio.Capture.
var _ audio.Capture = (*Capture)(nil)

// Chunks returns the scripted chunk channel.
func (c *Capture) Chunks() <-chan []byte { return c.ChunksCh }

// Close closes the chunk channel. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	c.CloseCount++
	c.mu.Unlock()
	c.once.Do(func() {
		close(c.ChunksCh)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

// Tone generates n bytes of a deterministic non-silent PCM pattern, useful
// for captures that must pass RMS-based silence checks.
func Tone(n int) []byte {
	pcm := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		// Square-ish wave well above any silence threshold.
		v := int16(8000)
		if (i/64)%2 == 0 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(pcm[i:], uint16(v))
	}
	return pcm
}
