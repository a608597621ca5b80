// Package search finds visually similar web results for an image via
// SerpApi's Google Lens engine.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://serpapi.com"

	// A slow search degrades the scan instead of blocking it; the
	// orchestrator treats a timeout like any other search failure.
	searchTimeout = 15 * time.Second

	maxMatches = 5
)

// Match is one visually similar web result. Price and Thumbnail are
// nil when the provider did not return them.
type Match struct {
	Title     string  `json:"title"`
	Price     *string `json:"price"`
	Link      string  `json:"link"`
	Source    string  `json:"source"`
	Thumbnail *string `json:"thumbnail"`
}

type lensResponse struct {
	VisualMatches []visualMatch `json:"visual_matches"`
}

type visualMatch struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Source    string     `json:"source"`
	Thumbnail string     `json:"thumbnail"`
	Price     *lensPrice `json:"price"`
}

type lensPrice struct {
	Value string `json:"value"`
}

// Lens is a reverse image search client.
type Lens struct {
	httpClient *resty.Client
	apiKey     string
}

type LensOpts struct {
	APIKey  string
	BaseURL string
}

func NewLens(opts LensOpts) *Lens {
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(searchTimeout)

	return &Lens{httpClient: httpClient, apiKey: opts.APIKey}
}

// Search looks up visually similar web results for a publicly
// reachable image URL. At most 5 matches are returned, in the
// provider's relevance order. One attempt, no retry.
func (l *Lens) Search(ctx context.Context, imageURL string) ([]Match, error) {
	result := &lensResponse{}

	res, err := l.httpClient.NewRequest().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google_lens",
			"url":     imageURL,
			"api_key": l.apiKey,
		}).
		SetResult(result).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search request failed with status %d", res.StatusCode())
	}

	matches := result.VisualMatches
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatch(m))
	}
	return out, nil
}

func toMatch(m visualMatch) Match {
	match := Match{
		Title:  m.Title,
		Link:   m.Link,
		Source: m.Source,
	}
	if match.Title == "" {
		match.Title = "Unknown"
	}
	if m.Price != nil && m.Price.Value != "" {
		value := m.Price.Value
		match.Price = &value
	}
	if m.Thumbnail != "" {
		thumbnail := m.Thumbnail
		match.Thumbnail = &thumbnail
	}
	return match
}
