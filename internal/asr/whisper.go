package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lukasbauer/tabscribe/internal/audio"
)

// WhisperClient sends utterances to a whisper transcription server as
// multipart WAV uploads.
type WhisperClient struct {
	endpoint   string
	apiKey     string
	language   string
	model      string
	httpClient *http.Client
}

// WhisperConfig holds configuration for the whisper-server client.
type WhisperConfig struct {
	Endpoint string // e.g. "http://localhost:9000/transcribe"
	APIKey   string // optional bearer token
	Language string // e.g. "ja"
	Model    string // optional model hint passed to the server
	Timeout  time.Duration
}

// whisperResponse is the JSON body returned by the transcription server.
type whisperResponse struct {
	Text string `json:"text"`
}

// NewWhisperClient creates a whisper-server transcription client.
func NewWhisperClient(cfg WhisperConfig) (*WhisperClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("whisper endpoint cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhisperClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Transcribe uploads the utterance as a WAV file and returns the recognized text.
func (c *WhisperClient) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode utterance: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return "", fmt.Errorf("failed to write model field: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription server error: %s - %s", resp.Status, string(respBody))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return wr.Text, nil
}
