package segment

import (
	"testing"
	"time"

	"github.com/lukasbauer/tabscribe/internal/vad"
)

const (
	testRate      = 16000
	frameSamples  = 320 // 20 ms at 16 kHz
	frameDuration = 20 * time.Millisecond
)

func testConfig() Config {
	return Config{
		SampleRate:           testRate,
		SilenceDuration:      time.Second,
		MinUtteranceDuration: 500 * time.Millisecond,
		MaxUtteranceDuration: 30 * time.Second,
		MinAudioLevel:        0.005,
	}
}

func newTestSegmenter(t *testing.T, cfg Config) *Segmenter {
	t.Helper()
	c, err := vad.NewClassifier(0.01)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New("sess-1", cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func speechFrame() []float32 {
	f := make([]float32, frameSamples)
	for i := range f {
		f[i] = 0.1
	}
	return f
}

func silenceFrame() []float32 {
	return make([]float32, frameSamples)
}

// push feeds n frames and returns the first emitted utterance, if any.
func push(s *Segmenter, frame func() []float32, n int) *Utterance {
	for i := 0; i < n; i++ {
		if u := s.Push(frame()); u != nil {
			return u
		}
	}
	return nil
}

func TestSpeechThenSilenceEmitsOneUtterance(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	// 2 s of speech followed by 1.2 s of silence, threshold 1.0 s.
	if u := push(s, speechFrame, 100); u != nil {
		t.Fatal("no utterance expected during speech")
	}
	u := push(s, silenceFrame, 60)
	if u == nil {
		t.Fatal("expected an utterance after the silence threshold")
	}

	// Buffer spans the speech run plus the trailing silence padding.
	gotDur := u.Duration(testRate)
	if gotDur < 2*time.Second || gotDur > 3100*time.Millisecond {
		t.Errorf("utterance duration = %s, want ~2s speech + <=1s padding", gotDur)
	}
	if u.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", u.SessionID)
	}
	if s.State() != StateIdle {
		t.Errorf("state after emit = %s, want idle", s.State())
	}

	// Remaining silence frames must not produce anything.
	if u := push(s, silenceFrame, 10); u != nil {
		t.Error("silence while idle should not emit")
	}
}

func TestShortSpeechDiscardedAsNoise(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	// 0.3 s of speech is below the 0.5 s minimum. The trailing silence padding
	// brings the buffer past 0.5 s, but silence must not count toward the gate.
	if u := push(s, speechFrame, 15); u != nil {
		t.Fatal("no utterance expected during speech")
	}
	if u := push(s, silenceFrame, 60); u != nil {
		t.Error("sub-minimum speech run should be discarded, not emitted")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle after discard", s.State())
	}
}

func TestSpeechJustAboveMinimumStillEmits(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	// 0.6 s of speech clears the 0.5 s minimum on its own.
	if u := push(s, speechFrame, 30); u != nil {
		t.Fatal("no utterance expected during speech")
	}
	if u := push(s, silenceFrame, 60); u == nil {
		t.Error("speech above the minimum should emit once silence elapses")
	}
}

func TestSpeechResumeResetsSilenceTimer(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	push(s, speechFrame, 50)  // 1 s speech
	push(s, silenceFrame, 25) // 0.5 s silence, below threshold
	if s.State() != StateTrailingSilence {
		t.Fatalf("state = %s, want trailing_silence", s.State())
	}

	if u := s.Push(speechFrame()); u != nil {
		t.Fatal("resumed speech should not emit")
	}
	if s.State() != StateSpeech {
		t.Fatalf("state = %s, want speech after resume", s.State())
	}

	// The silence timer restarted: 0.6 s more silence is still below threshold.
	if u := push(s, silenceFrame, 30); u != nil {
		t.Error("silence below threshold after resume should not emit")
	}
	// Completing the gap emits one utterance covering the whole run.
	if u := push(s, silenceFrame, 25); u == nil {
		t.Error("expected utterance once the full silence threshold elapsed")
	}
}

func TestMaxDurationForceSplit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtteranceDuration = 2 * time.Second
	s := newTestSegmenter(t, cfg)

	u := push(s, speechFrame, 200)
	if u == nil {
		t.Fatal("expected a force split at max duration")
	}
	if got := u.Duration(testRate); got != 2*time.Second {
		t.Errorf("force-split duration = %s, want 2s", got)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle after force split", s.State())
	}
}

func TestLowLevelBufferDiscarded(t *testing.T) {
	cfg := testConfig()
	cfg.MinAudioLevel = 0.2 // above the 0.1 test amplitude
	s := newTestSegmenter(t, cfg)

	push(s, speechFrame, 50)
	if u := push(s, silenceFrame, 60); u != nil {
		t.Error("buffer below the audio level gate should be discarded")
	}
}

func TestFlushEmitsPendingBuffer(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	push(s, speechFrame, 50) // 1 s buffered, above minimum
	u := s.Flush()
	if u == nil {
		t.Fatal("Flush should emit the pending buffer")
	}
	if got := u.Duration(testRate); got != time.Second {
		t.Errorf("flushed duration = %s, want 1s", got)
	}

	if u := s.Flush(); u != nil {
		t.Error("second Flush should return nil")
	}
}

func TestFlushDiscardsShortBuffer(t *testing.T) {
	s := newTestSegmenter(t, testConfig())

	push(s, speechFrame, 10) // 0.2 s, below minimum
	if u := s.Flush(); u != nil {
		t.Error("Flush should discard a sub-minimum buffer")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero silence", func(c *Config) { c.SilenceDuration = 0 }},
		{"zero min", func(c *Config) { c.MinUtteranceDuration = 0 }},
		{"max below min", func(c *Config) { c.MaxUtteranceDuration = c.MinUtteranceDuration }},
		{"negative level", func(c *Config) { c.MinAudioLevel = -1 }},
	}

	for _, tt := range tests {
		cfg := testConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
