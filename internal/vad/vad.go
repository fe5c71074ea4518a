// Package vad classifies audio frames as speech or silence using RMS energy.
package vad

import (
	"fmt"
	"sync"

	"github.com/lukasbauer/tabscribe/internal/audio"
)

// Classifier makes a per-frame speech/non-speech decision by comparing the
// frame's RMS energy against a fixed threshold.
type Classifier struct {
	threshold float64

	mu          sync.Mutex
	totalFrames uint64
	voiceFrames uint64
}

// Stats reports how many frames the classifier has seen and how many carried voice.
type Stats struct {
	TotalFrames uint64
	VoiceFrames uint64
}

// NewClassifier creates a classifier. Threshold is an RMS level in [0, 1);
// frames at or above it are classified as speech.
func NewClassifier(threshold float64) (*Classifier, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1), got %f", threshold)
	}
	return &Classifier{threshold: threshold}, nil
}

// IsSpeech returns the voice-activity decision for one frame of samples.
func (c *Classifier) IsSpeech(samples []float32) bool {
	speech := audio.RMS(samples) >= c.threshold

	c.mu.Lock()
	c.totalFrames++
	if speech {
		c.voiceFrames++
	}
	c.mu.Unlock()

	return speech
}

// Stats returns a snapshot of the frame counters.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{TotalFrames: c.totalFrames, VoiceFrames: c.voiceFrames}
}
