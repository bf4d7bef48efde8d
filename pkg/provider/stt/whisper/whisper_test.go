package whisper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	wav := []byte("RIFF-fake-wav")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		if !bytes.Equal(got, wav) {
			t.Error("uploaded file is not the WAV clip")
		}
		if lang := r.FormValue("language"); lang != "en" {
			t.Errorf("language field = %q, want en", lang)
		}
		if model := r.FormValue("model"); model != "base.en" {
			t.Errorf("model field = %q, want base.en", model)
		}
		w.Write([]byte(`{"text":" Pineapple."}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithLanguage("en"), WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := c.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != " Pineapple." {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Transcribe(context.Background(), []byte("wav")); err == nil {
		t.Error("Transcribe succeeded on HTTP 500")
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty serverURL succeeded")
	}
}
