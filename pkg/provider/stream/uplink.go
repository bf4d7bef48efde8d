// Package stream provides a best-effort websocket uplink that mirrors each
// listening segment's audio to the backend while listening is enabled.
//
// The uplink is strictly optional: it never gates the detection pipeline.
// Clips are queued on a buffered channel; when the queue is full or the
// connection is down the clip is dropped and a warning logged. The connection
// lifecycle follows the listening state — the mode coordinator opens an
// uplink on enable and closes it on disable.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds a single clip write so a stalled peer cannot wedge the
// write loop.
const writeTimeout = 10 * time.Second

// ErrClosed is returned by Send after the uplink has been closed.
var ErrClosed = errors.New("stream: uplink is closed")

// Uplink is an open websocket session mirroring segment audio to the backend.
type Uplink struct {
	conn  *websocket.Conn
	clips chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Dial opens an uplink to the given websocket URL (e.g. "ws://host:5000/listen").
func Dial(ctx context.Context, url string) (*Uplink, error) {
	if url == "" {
		return nil, errors.New("stream: url must not be empty")
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	u := &Uplink{
		conn:  conn,
		clips: make(chan []byte, 8),
		done:  make(chan struct{}),
	}
	u.wg.Add(1)
	go u.writeLoop()
	return u, nil
}

// Send queues a WAV clip for delivery. It never blocks: when the queue is
// full the clip is dropped and a warning logged — the uplink is a mirror,
// not a source of truth.
func (u *Uplink) Send(clip []byte) error {
	select {
	case <-u.done:
		return ErrClosed
	default:
	}
	select {
	case u.clips <- clip:
		return nil
	case <-u.done:
		return ErrClosed
	default:
		slog.Warn("stream: uplink queue full, dropping clip", "bytes", len(clip))
		return nil
	}
}

// Close terminates the uplink cleanly. Safe to call more than once.
func (u *Uplink) Close() error {
	u.once.Do(func() {
		close(u.done)
		u.wg.Wait()
		u.conn.Close(websocket.StatusNormalClosure, "uplink closed")
	})
	return nil
}

// writeLoop drains the clip queue onto the websocket as binary messages.
func (u *Uplink) writeLoop() {
	defer u.wg.Done()
	for {
		select {
		case clip := <-u.clips:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := u.conn.Write(ctx, websocket.MessageBinary, clip)
			cancel()
			if err != nil {
				slog.Warn("stream: uplink write failed", "error", err)
				return
			}
		case <-u.done:
			return
		}
	}
}
