// Package search provides the citation source lookup capability: a real
// web-search backend when one is configured, and a deterministic topic
// derived source the pipeline falls back to when the backend is absent or
// failing, so citations never hard-fail on an external outage.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Result is one candidate source returned by a search.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"content"`
}

// Searcher is the lookup capability injected into the pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Config for the HTTP-backed searcher.
type Config struct {
	BaseURL string // SearXNG-compatible instance, e.g. http://localhost:8888
	Timeout time.Duration
}

// HTTP queries a SearXNG-compatible JSON endpoint.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP builds an HTTP searcher with a bounded per-request timeout.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("search: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (h *HTTP) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", h.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var payload struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if limit > 0 && len(payload.Results) > limit {
		payload.Results = payload.Results[:limit]
	}
	return payload.Results, nil
}

var titleCaser = cases.Title(language.English)

// StaticSources derives a deterministic set of placeholder sources from
// extracted topics. Two entries per topic, reference site first, capped at
// limit. Same topics in, same sources out.
func StaticSources(topics []string, limit int) []Result {
	var results []Result
	for _, topic := range topics {
		display := titleCaser.String(topic)
		results = append(results,
			Result{
				URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(display),
				Title:   display + " - Overview",
				Snippet: "Background reference for " + topic,
			},
			Result{
				URL:     "https://scholar.google.com/scholar?q=" + url.QueryEscape(topic),
				Title:   display + " - Research",
				Snippet: "Published research related to " + topic,
			},
		)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
