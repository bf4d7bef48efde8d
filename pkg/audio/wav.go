package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// wavHeaderSize is the size of the canonical 44-byte RIFF/WAV header written
// by [EncodeWAV].
const wavHeaderSize = 44

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct upload
// to the speech services.
func EncodeWAV(pcm []byte, format Format) []byte {
	const bps = 16
	byteRate := format.SampleRate * format.Channels * bps / 8
	blockAlign := format.Channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV extracts the PCM payload and format from a WAV file produced by
// [EncodeWAV] or an equivalent 16-bit PCM encoder. Only the canonical layout
// (fmt chunk immediately followed by data) is supported.
func DecodeWAV(wav []byte) ([]byte, Format, error) {
	if len(wav) < wavHeaderSize {
		return nil, Format{}, errors.New("audio: wav data shorter than header")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE file")
	}
	if audioFormat := binary.LittleEndian.Uint16(wav[20:22]); audioFormat != 1 {
		return nil, Format{}, fmt.Errorf("audio: unsupported wav audio format %d (want PCM)", audioFormat)
	}
	format := Format{
		Channels:   int(binary.LittleEndian.Uint16(wav[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(wav[24:28])),
	}
	dataSize := int(binary.LittleEndian.Uint32(wav[40:44]))
	if dataSize > len(wav)-wavHeaderSize {
		dataSize = len(wav) - wavHeaderSize
	}
	return wav[wavHeaderSize : wavHeaderSize+dataSize], format, nil
}

// ComputeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer, expressed in PCM sample units (0–32 767).
// Returns 0 for buffers shorter than one sample.
func ComputeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// PCMDuration returns the wall-clock duration of a PCM buffer in the given
// format. Returns 0 for invalid formats.
func PCMDuration(pcm []byte, format Format) time.Duration {
	bps := format.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bps)
}
