// Package relay orchestrates the summarize pipeline: transcript in, Gemini
// summary out, optionally archived to Notion.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lukasbauer/tabscribe/internal/notion"
	"github.com/lukasbauer/tabscribe/internal/summarize"
)

// ErrEmptyTranscript is returned when there is nothing to summarize.
var ErrEmptyTranscript = errors.New("no text available for summarization")

// Stage identifies a progress point in the pipeline, reported to the client
// before the corresponding slow call starts.
type Stage int

const (
	StageSummarizing Stage = iota
	StageSavingNotion
)

// NotionSaver archives a summary and reports where it landed.
type NotionSaver interface {
	SaveSummary(ctx context.Context, summary string) (*notion.SaveResult, error)
}

// NotionOutcome describes the result of the Notion save attempt.
type NotionOutcome struct {
	Success bool
	URL     string
	Title   string
	Message string
}

// Outcome is the result of a summarize request. Notion is nil when no
// Notion client is configured.
type Outcome struct {
	Summary string
	Notion  *NotionOutcome
}

// Relay runs summarize requests against the configured backends. Either
// backend may be nil when its credentials are missing; the pipeline
// degrades instead of failing.
type Relay struct {
	summarizer summarize.Summarizer
	notion     NotionSaver
	logger     *log.Logger
}

// New creates a relay. summarizer and saver may be nil.
func New(summarizer summarize.Summarizer, saver NotionSaver, logger *log.Logger) *Relay {
	return &Relay{summarizer: summarizer, notion: saver, logger: logger}
}

// Summarize generates a summary for the transcript and saves it to Notion
// when configured. progress is called before each slow stage; it may be nil.
// A Notion failure does not fail the request, it is reported in the outcome.
func (r *Relay) Summarize(ctx context.Context, transcript, customPrompt string, progress func(Stage)) (*Outcome, error) {
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	if progress != nil {
		progress(StageSummarizing)
	}

	var summary string
	if r.summarizer == nil {
		summary = "AI summarization not available (API key missing)"
	} else {
		var err error
		summary, err = r.summarizer.Summarize(ctx, transcript, customPrompt)
		if err != nil {
			return nil, fmt.Errorf("summarization failed: %w", err)
		}
	}

	out := &Outcome{Summary: summary}

	if r.notion != nil {
		if progress != nil {
			progress(StageSavingNotion)
		}
		res, err := r.notion.SaveSummary(ctx, summary)
		if err != nil {
			r.logger.Printf("relay: notion save failed: %v", err)
			out.Notion = &NotionOutcome{Success: false, Message: err.Error()}
		} else {
			out.Notion = &NotionOutcome{Success: true, URL: res.URL, Title: res.Title}
		}
	}

	return out, nil
}
