package stream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// echoServer accepts one websocket connection and forwards every binary
// message it receives onto the returned channel.
func echoServer(t *testing.T) (*httptest.Server, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received <- data
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialAndSend(t *testing.T) {
	srv, received := echoServer(t)

	u, err := Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer u.Close()

	clip := []byte("segment-wav")
	if err := u.Send(clip); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, clip) {
			t.Errorf("server received %q, want %q", got, clip)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("clip never reached the server")
	}
}

func TestSendAfterClose(t *testing.T) {
	srv, _ := echoServer(t)

	u, err := Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := u.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := u.Send([]byte("late")); err != ErrClosed {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestDialRequiresURL(t *testing.T) {
	if _, err := Dial(context.Background(), ""); err == nil {
		t.Error("Dial with empty url succeeded")
	}
}
