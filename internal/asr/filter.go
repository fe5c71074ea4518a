package asr

import (
	"regexp"
	"strings"
)

// FilterConfig bounds accepted transcription text. Zero values fall back to
// the defaults used for whisper output cleanup.
type FilterConfig struct {
	MinLength          int // minimum rune count
	MaxLength          int // maximum rune count
	MaxRepeatedChars   int // identical consecutive runes at or above this count reject
	MaxRepeatedWords   int // identical consecutive words above this count reject
}

// DefaultFilterConfig matches the tuning used for whisper output.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinLength:        2,
		MaxLength:        2000,
		MaxRepeatedChars: 4,
		MaxRepeatedWords: 2,
	}
}

// noisePatterns reject hallucinated or meaningless whisper output: stray
// letters, bare numbers, symbol runs, and filler words in English or Japanese.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-zA-Z]$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^[!@#$%^&*(),.?":{}|<>]+$`),
	regexp.MustCompile(`^(あ|い|う|え|お|ん|っ|。|、)+$`),
	regexp.MustCompile(`(?i)^(um|uh|ah|oh|mm|hmm)\s*$`),
	regexp.MustCompile(`^(えー|あー|うー|んー|あの|その|まあ)\s*$`),
	regexp.MustCompile(`^\s*$`),
}

// ValidText reports whether transcription text is worth delivering. Rejected
// text is dropped silently; the job still completes normally.
func ValidText(text string, cfg FilterConfig) bool {
	text = strings.TrimSpace(text)
	runes := []rune(text)

	if len(runes) < cfg.MinLength || len(runes) > cfg.MaxLength {
		return false
	}

	if cfg.MaxRepeatedChars > 0 {
		run := 1
		for i := 1; i < len(runes); i++ {
			if runes[i] == runes[i-1] {
				run++
				if run >= cfg.MaxRepeatedChars {
					return false
				}
			} else {
				run = 1
			}
		}
	}

	if cfg.MaxRepeatedWords > 0 {
		words := strings.Fields(text)
		run := 1
		for i := 1; i < len(words); i++ {
			if words[i] == words[i-1] {
				run++
				if run > cfg.MaxRepeatedWords {
					return false
				}
			} else {
				run = 1
			}
		}
	}

	for _, p := range noisePatterns {
		if p.MatchString(text) {
			return false
		}
	}

	return true
}
