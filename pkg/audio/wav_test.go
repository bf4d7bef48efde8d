package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	wav := EncodeWAV(pcm, DefaultFormat)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}

	decoded, format, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Error("decoded PCM does not round-trip")
	}
	if format != DefaultFormat {
		t.Errorf("format = %+v, want %+v", format, DefaultFormat)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("DecodeWAV accepted a truncated buffer")
	}
	junk := make([]byte, 64)
	if _, _, err := DecodeWAV(junk); err == nil {
		t.Error("DecodeWAV accepted data without RIFF magic")
	}
}

func TestDecodeWAVClampsDataSize(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := EncodeWAV(pcm, DefaultFormat)
	// Lie about the data size; the decoder must clamp to what is present.
	binary.LittleEndian.PutUint32(wav[40:44], 1<<20)
	decoded, _, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Errorf("decoded = %v, want %v", decoded, pcm)
	}
}

func TestPCMDuration(t *testing.T) {
	// One second of mono 16 kHz 16-bit PCM is 32000 bytes.
	pcm := make([]byte, 32000)
	if got := PCMDuration(pcm, DefaultFormat); got != time.Second {
		t.Errorf("PCMDuration = %v, want 1s", got)
	}
	if got := PCMDuration(pcm, Format{}); got != 0 {
		t.Errorf("PCMDuration with zero format = %v, want 0", got)
	}
}

func TestComputeRMS(t *testing.T) {
	if got := ComputeRMS(nil); got != 0 {
		t.Errorf("ComputeRMS(nil) = %v, want 0", got)
	}

	silence := make([]byte, 320)
	if got := ComputeRMS(silence); got != 0 {
		t.Errorf("ComputeRMS(silence) = %v, want 0", got)
	}

	// A constant-amplitude signal has RMS equal to that amplitude.
	const amp = 1000
	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		binary.LittleEndian.PutUint16(loud[i:i+2], uint16(int16(amp)))
	}
	if got := ComputeRMS(loud); math.Abs(got-amp) > 1e-9 {
		t.Errorf("ComputeRMS(constant %d) = %v", amp, got)
	}
}
