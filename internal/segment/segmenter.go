// Package segment turns a per-session stream of audio frames into bounded
// utterances using per-frame voice-activity decisions.
package segment

import (
	"fmt"
	"time"

	"github.com/lukasbauer/tabscribe/internal/audio"
	"github.com/lukasbauer/tabscribe/internal/vad"
)

// State is the segmenter's position in the utterance state machine.
type State int

const (
	StateIdle State = iota
	StateSpeech
	StateTrailingSilence
)

func (s State) String() string {
	switch s {
	case StateSpeech:
		return "speech"
	case StateTrailingSilence:
		return "trailing_silence"
	default:
		return "idle"
	}
}

// Utterance is a contiguous span of buffered samples bounded by detected
// speech onset and a qualifying silence gap. Ownership transfers to the
// dispatcher on emit.
type Utterance struct {
	SessionID string
	Samples   []float32
	Start     time.Time
	End       time.Time
}

// Duration returns the utterance length derived from its sample count.
func (u *Utterance) Duration(sampleRate int) time.Duration {
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(sampleRate)
}

// Config holds segmentation parameters.
type Config struct {
	SampleRate           int
	SilenceDuration      time.Duration // trailing silence that closes an utterance
	MinUtteranceDuration time.Duration // shorter buffers are discarded as noise
	MaxUtteranceDuration time.Duration // force split above this length
	MinAudioLevel        float64       // overall RMS gate for a completed buffer
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %s", c.SilenceDuration)
	}
	if c.MinUtteranceDuration <= 0 {
		return fmt.Errorf("min utterance duration must be positive, got %s", c.MinUtteranceDuration)
	}
	if c.MaxUtteranceDuration <= c.MinUtteranceDuration {
		return fmt.Errorf("max utterance duration %s must exceed min %s",
			c.MaxUtteranceDuration, c.MinUtteranceDuration)
	}
	if c.MinAudioLevel < 0 {
		return fmt.Errorf("min audio level cannot be negative, got %f", c.MinAudioLevel)
	}
	return nil
}

// Segmenter is the per-session state machine. It is not safe for concurrent
// use; the owning connection's read loop is its only caller.
type Segmenter struct {
	cfg        Config
	classifier *vad.Classifier
	sessionID  string

	state          State
	buf            []float32
	silenceSamples int // accumulated trailing silence
	start          time.Time
	now            func() time.Time
}

// New creates a segmenter for one session.
func New(sessionID string, cfg Config, classifier *vad.Classifier) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		cfg:        cfg,
		classifier: classifier,
		sessionID:  sessionID,
		state:      StateIdle,
		now:        time.Now,
	}, nil
}

// State returns the current state machine position.
func (s *Segmenter) State() State { return s.state }

// Push feeds one frame of samples through the state machine and returns an
// emitted utterance, or nil. Durations are derived from sample counts, not
// wall-clock time, so segmentation is deterministic for a given frame stream.
func (s *Segmenter) Push(samples []float32) *Utterance {
	if len(samples) == 0 {
		return nil
	}

	speech := s.classifier.IsSpeech(samples)

	switch s.state {
	case StateIdle:
		if !speech {
			return nil
		}
		s.start = s.now()
		s.buf = append(s.buf, samples...)
		s.state = StateSpeech

	case StateSpeech:
		s.buf = append(s.buf, samples...)
		if !speech {
			// Keep the silent frame to avoid clipping trailing phonemes.
			s.state = StateTrailingSilence
			s.silenceSamples = len(samples)
		}

	case StateTrailingSilence:
		s.buf = append(s.buf, samples...)
		if speech {
			s.state = StateSpeech
			s.silenceSamples = 0
			break
		}
		s.silenceSamples += len(samples)
		if s.duration(s.silenceSamples) >= s.cfg.SilenceDuration {
			return s.finish()
		}
	}

	// Force split regardless of state once the buffer hits the cap.
	if s.duration(len(s.buf)) >= s.cfg.MaxUtteranceDuration {
		return s.emit()
	}

	return nil
}

// Flush emits any pending buffer on session close, provided it meets the
// minimum duration. The segmenter returns to idle either way.
func (s *Segmenter) Flush() *Utterance {
	if s.state == StateIdle {
		return nil
	}
	return s.finish()
}

// finish applies the noise gates and either emits or discards the buffer.
// The minimum-duration gate measures speech only; buffered trailing silence
// must not push a short run over the threshold.
func (s *Segmenter) finish() *Utterance {
	if s.duration(len(s.buf)-s.silenceSamples) < s.cfg.MinUtteranceDuration {
		s.reset()
		return nil
	}
	if audio.RMS(s.buf) < s.cfg.MinAudioLevel {
		s.reset()
		return nil
	}
	return s.emit()
}

// emit hands the buffer off as an utterance and resets to idle.
func (s *Segmenter) emit() *Utterance {
	u := &Utterance{
		SessionID: s.sessionID,
		Samples:   s.buf,
		Start:     s.start,
		End:       s.now(),
	}
	s.buf = nil
	s.reset()
	return u
}

func (s *Segmenter) reset() {
	s.state = StateIdle
	s.buf = nil
	s.silenceSamples = 0
	s.start = time.Time{}
}

func (s *Segmenter) duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(s.cfg.SampleRate)
}
