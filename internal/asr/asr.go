// Package asr defines the transcription engine interface and its HTTP-backed
// implementations.
package asr

import "context"

// Engine transcribes one utterance's samples to text. Implementations make a
// single attempt; retry policy belongs to the caller.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
