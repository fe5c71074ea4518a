// Package summarize turns a session transcript into a markdown summary
// using the Gemini API.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// defaultPrompt asks for a structured Japanese markdown summary with a
// title heading the Notion exporter can lift into the page title.
const defaultPrompt = `以下の文字起こしテキストを要約してください。

要約のルール:
1. **タイトル**: 簡潔で分かりやすいタイトルを最初の行に # で記載
2. **構造化**: 見出しと箇条書きを使って整理
3. **重要ポイント**: 太文字(**text**)で強調
4. **詳細情報**: 必要に応じてネストした箇条書きで詳細を記載

出力形式はマークダウンで、以下のような構造にしてください:

# [適切なタイトル]

## 概要
- 主要な話題の概要

## 重要なポイント
- **重要事項1**: 詳細説明
    - 補足情報
    - 具体例
- **重要事項2**: 詳細説明

## 結論・まとめ
- 最終的な結論やまとめ`

// Summarizer produces a summary for a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, customPrompt string) (string, error)
}

// GeminiSummarizer implements Summarizer on the Gemini API.
type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

// NewGemini creates a summarizer backed by the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiSummarizer{client: client, model: model}, nil
}

// Summarize sends the transcript to Gemini and returns the markdown summary.
// An empty customPrompt falls back to the default summarization prompt.
func (g *GeminiSummarizer) Summarize(ctx context.Context, transcript, customPrompt string) (string, error) {
	prompt := strings.TrimSpace(customPrompt)
	if prompt == "" {
		prompt = defaultPrompt
	}
	full := prompt + "\n\n文字起こしテキスト:\n" + transcript

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(full)}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty summary")
	}
	return sb.String(), nil
}
