// Package notion saves generated summaries as pages in a Notion workspace.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// Client creates pages through the Notion REST API.
type Client struct {
	token        string
	parentPageID string
	baseURL      string
	httpClient   *http.Client
}

// Config holds configuration for the Notion client.
type Config struct {
	Token        string
	ParentPageID string
	Timeout      time.Duration
	BaseURL      string // override for tests
}

// SaveResult reports where a summary was stored.
type SaveResult struct {
	URL   string
	Title string
}

type createPageRequest struct {
	Parent     pageParent     `json:"parent"`
	Properties pageProperties `json:"properties"`
	Children   []block        `json:"children"`
}

type pageParent struct {
	PageID string `json:"page_id"`
}

type pageProperties struct {
	Title titleProperty `json:"title"`
}

type titleProperty struct {
	Title []richText `json:"title"`
}

type createPageResponse struct {
	URL string `json:"url"`
}

// New creates a Notion client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notion token cannot be empty")
	}
	if cfg.ParentPageID == "" {
		return nil, fmt.Errorf("notion parent page id cannot be empty")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		token:        cfg.Token,
		parentPageID: cfg.ParentPageID,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// SaveSummary creates a new page under the configured parent. The page title
// comes from the summary's first heading, falling back to a timestamp when
// the summary has no usable title.
func (c *Client) SaveSummary(ctx context.Context, summary string) (*SaveResult, error) {
	title := extractTitle(summary)
	if title == "" {
		title = "Transcription Summary - " + time.Now().Format("2006-01-02 15:04:05")
	}

	reqBody := createPageRequest{
		Parent: pageParent{PageID: c.parentPageID},
		Properties: pageProperties{
			Title: titleProperty{
				Title: []richText{plainText(title)},
			},
		},
		Children: markdownToBlocks(summary, true),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/pages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("notion API error: %s - %s", resp.Status, string(respBody))
	}

	var page createPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &SaveResult{URL: page.URL, Title: title}, nil
}
