package asr

import "testing"

func TestValidText(t *testing.T) {
	cfg := DefaultFilterConfig()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"normal sentence", "今日の会議では新しい設計について話しました", true},
		{"english sentence", "The deployment finished without errors.", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"single rune", "あ", false},
		{"single letter", "a", false},
		{"numbers only", "12345", false},
		{"symbols only", "!?.,", false},
		{"repeated chars", "ままままま", false},
		{"repeated words", "test test test", false},
		{"two repeated words ok", "test test done", true},
		{"english filler", "um", false},
		{"english filler upper", "Hmm", false},
		{"japanese filler", "えー", false},
		{"japanese single chars", "あああ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidText(tt.text, cfg); got != tt.want {
				t.Errorf("ValidText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidTextMaxLength(t *testing.T) {
	cfg := DefaultFilterConfig()
	long := make([]rune, cfg.MaxLength+1)
	for i := range long {
		// Vary the rune to avoid tripping the repetition check.
		long[i] = rune('a' + i%20)
	}
	if ValidText(string(long), cfg) {
		t.Error("text above MaxLength should be rejected")
	}
}
