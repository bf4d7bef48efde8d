// Package alsa provides an [audio.Device] backed by the ALSA `arecord`
// utility. It shells out rather than binding libasound directly, which keeps
// the daemon CGO-free and lets the capture device be overridden with the
// standard ALSA device syntax (e.g. "default:CARD=Generic_1").
package alsa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/murmur-app/murmur/pkg/audio"
)

// chunkSize is the read granularity from the arecord pipe. At 16 kHz mono
// 16-bit PCM this is 100 ms of audio per chunk.
const chunkSize = 3200

// Compile-time assertion that Device implements audio.Device.
var _ audio.Device = (*Device)(nil)

// Option is a functional option for configuring a [Device].
type Option func(*Device)

// WithALSADevice selects the ALSA capture device passed to arecord via -D.
// When empty the system default device is used.
func WithALSADevice(name string) Option {
	return func(d *Device) {
		d.alsaDevice = name
	}
}

// WithBinary overrides the arecord binary path. Useful in tests.
func WithBinary(path string) Option {
	return func(d *Device) {
		d.binary = path
	}
}

// Device captures microphone audio by running arecord with raw output and
// streaming its stdout. Only one capture may be live at a time.
type Device struct {
	alsaDevice string
	binary     string

	mu   sync.Mutex
	live bool
}

// New creates an arecord-backed capture device.
func New(opts ...Option) *Device {
	d := &Device{binary: "arecord"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Open starts arecord in raw streaming mode and returns a capture that
// delivers PCM chunks until closed. Returns an error if a capture is already
// live on this device.
func (d *Device) Open(ctx context.Context, format audio.Format) (audio.Capture, error) {
	d.mu.Lock()
	if d.live {
		d.mu.Unlock()
		return nil, errors.New("alsa: capture already live")
	}
	d.live = true
	d.mu.Unlock()

	args := []string{}
	if d.alsaDevice != "" {
		args = append(args, "-D", d.alsaDevice)
	}
	args = append(args,
		"-f", "S16_LE",
		"-r", strconv.Itoa(format.SampleRate),
		"-c", strconv.Itoa(format.Channels),
		"-t", "raw",
		"-q",
		"-",
	)

	captureCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(captureCtx, d.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		d.release()
		return nil, fmt.Errorf("alsa: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		d.release()
		return nil, fmt.Errorf("alsa: start %s: %w", d.binary, err)
	}

	c := &capture{
		chunks: make(chan []byte, 32),
		cancel: cancel,
		device: d,
	}
	c.wg.Add(1)
	go c.readLoop(captureCtx, stdout, cmd)

	return c, nil
}

func (d *Device) release() {
	d.mu.Lock()
	d.live = false
	d.mu.Unlock()
}

// capture is one live arecord stream. It implements audio.Capture.
type capture struct {
	chunks chan []byte
	cancel context.CancelFunc
	device *Device

	once sync.Once
	wg   sync.WaitGroup
}

// Chunks returns the channel of raw PCM chunks.
func (c *capture) Chunks() <-chan []byte { return c.chunks }

// Close terminates arecord and waits for the read loop to drain.
func (c *capture) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

// readLoop copies arecord's stdout into fixed-size chunks. It owns the
// chunks channel and the device's live flag. Sends never block past capture
// cancellation, so Close cannot deadlock on a stalled consumer.
func (c *capture) readLoop(ctx context.Context, r io.Reader, cmd *exec.Cmd) {
	defer c.wg.Done()
	defer c.device.release()
	defer close(c.chunks)
	// Reap arecord regardless of how the loop exits.
	defer cmd.Wait() //nolint:errcheck // killed on cancel; exit status is expected noise

	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			select {
			case c.chunks <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}
