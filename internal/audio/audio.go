// Package audio decodes raw browser audio frames and encodes WAV payloads
// for transcription uploads.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Format identifies the wire encoding of binary audio frames.
type Format string

const (
	FormatFloat32 Format = "f32le"
	FormatPCM16   Format = "s16le"
)

// ParseFormat validates a configured frame format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatFloat32, FormatPCM16:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported audio format %q (want f32le or s16le)", s)
}

// SampleWidth returns the byte width of one sample in this format.
func (f Format) SampleWidth() int {
	if f == FormatPCM16 {
		return 2
	}
	return 4
}

// DecodeFrame converts a binary frame payload to mono float32 samples in [-1, 1].
// The payload length must be a multiple of the sample width; anything else is a
// contract violation by the sender.
func DecodeFrame(payload []byte, format Format) ([]float32, error) {
	width := format.SampleWidth()
	if len(payload) == 0 || len(payload)%width != 0 {
		return nil, fmt.Errorf("frame payload of %d bytes is not a multiple of %d-byte %s samples",
			len(payload), width, format)
	}

	n := len(payload) / width
	samples := make([]float32, n)

	switch format {
	case FormatFloat32:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(payload[i*4:])
			samples[i] = math.Float32frombits(bits)
		}
	case FormatPCM16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(payload[i*2:]))
			samples[i] = float32(v) / 32768.0
		}
	}

	return samples, nil
}

// RMS returns the root-mean-square level of the samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV encodes mono float32 samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		pcm[i] = int16(v)
	}

	dataSize := uint32(len(pcm) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}
