package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testSamples() []float32 {
	s := make([]float32, 1600)
	for i := range s {
		s[i] = 0.1
	}
	return s
}

func TestWhisperClientTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("language"); got != "ja" {
			t.Errorf("language = %q, want ja", got)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if header.Filename != "utterance.wav" {
			t.Errorf("filename = %q, want utterance.wav", header.Filename)
		}

		buf := make([]byte, 12)
		if _, err := f.Read(buf); err != nil {
			t.Fatalf("read upload: %v", err)
		}
		if string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
			t.Error("uploaded payload is not a WAV file")
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "こんにちは"})
	}))
	defer srv.Close()

	c, err := NewWhisperClient(WhisperConfig{
		Endpoint: srv.URL,
		APIKey:   "secret",
		Language: "ja",
	})
	if err != nil {
		t.Fatal(err)
	}

	text, err := c.Transcribe(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "こんにちは" {
		t.Errorf("text = %q, want こんにちは", text)
	}
}

func TestWhisperClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewWhisperClient(WhisperConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Transcribe(context.Background(), testSamples(), 16000); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestWhisperClientEmptyEndpoint(t *testing.T) {
	if _, err := NewWhisperClient(WhisperConfig{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestOpenAIClientTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q, want whisper-1", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello there"})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	text, err := c.Transcribe(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q, want %q", text, "hello there")
	}
}

func TestOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
