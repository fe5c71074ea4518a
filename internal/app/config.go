package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	SentryDSN   string

	// WebSocket authentication. Empty disables auth.
	WSJWTSecret string

	// Audio contract
	SampleRate  int
	AudioFormat string // "f32le" or "s16le"

	// Segmentation
	SilenceThreshold     float64
	SilenceDuration      time.Duration
	MinUtteranceDuration time.Duration
	MaxUtteranceDuration time.Duration
	MinAudioLevel        float64

	// Transcription workers
	Workers   int
	QueueSize int

	// ASR provider: "whisper" (self-hosted server) or "openai"
	ASRProvider     string
	ASRLanguage     string
	ASRTimeout      time.Duration
	WhisperEndpoint string
	WhisperAPIKey   string
	OpenAIAPIKey    string
	OpenAIASRModel  string

	// Summarization
	GeminiAPIKey string
	GeminiModel  string

	// Notion export
	NotionToken        string
	NotionParentPageID string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		SentryDSN:   getenv("SENTRY_DSN", ""),

		WSJWTSecret: os.Getenv("WS_JWT_SECRET"), // No fallback - empty disables auth

		SampleRate:  getenvInt("SAMPLE_RATE", 16000),
		AudioFormat: getenv("AUDIO_FORMAT", "f32le"),

		SilenceThreshold:     getenvFloat("SILENCE_THRESHOLD", 0.01),
		SilenceDuration:      getenvDuration("SILENCE_DURATION", 700*time.Millisecond),
		MinUtteranceDuration: getenvDuration("MIN_UTTERANCE_DURATION", 500*time.Millisecond),
		MaxUtteranceDuration: getenvDuration("MAX_UTTERANCE_DURATION", 30*time.Second),
		MinAudioLevel:        getenvFloat("MIN_AUDIO_LEVEL", 0.005),

		Workers:   getenvInt("WORKERS", 2),
		QueueSize: getenvInt("QUEUE_SIZE", 32),

		ASRProvider:     getenv("ASR_PROVIDER", "whisper"),
		ASRLanguage:     getenv("ASR_LANGUAGE", "ja"),
		ASRTimeout:      getenvDuration("ASR_TIMEOUT", 30*time.Second),
		WhisperEndpoint: getenv("WHISPER_ENDPOINT", ""),
		WhisperAPIKey:   getenv("WHISPER_API_KEY", ""),
		OpenAIAPIKey:    getenv("OPENAI_API_KEY", ""),
		OpenAIASRModel:  getenv("OPENAI_ASR_MODEL", "whisper-1"),

		GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),

		NotionToken:        getenv("NOTION_TOKEN", ""),
		NotionParentPageID: getenv("NOTION_PARENT_PAGE_ID", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
