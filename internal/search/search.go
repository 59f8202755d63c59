// Package search wraps the web-search collaborator used for supplier
// research. The simulation only needs query-in, text-out.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const perplexityURL = "https://api.perplexity.ai/chat/completions"

// Searcher answers free-text queries with researched prose.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Client queries a Perplexity-style chat completions endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewClient creates a search client. Returns nil if apiKey is empty
// (search disabled; callers get a legible failure instead).
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: perplexityURL,
		model:    "sonar",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoint overrides the API endpoint for tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Search implements Searcher.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("search unavailable: no API key configured")
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": query},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("search returned no results")
	}
	return parsed.Choices[0].Message.Content, nil
}
