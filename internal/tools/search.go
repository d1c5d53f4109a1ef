package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/envutil"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
)

const maxSearchResults = 10

// SearchResult is one hit from the web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher answers free-text queries. The default implementation talks
// to a SearxNG-compatible JSON endpoint.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

type searxClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewWebSearcher(log *logger.Logger) (WebSearcher, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(envutil.Str("SEARCH_API_URL", "")), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing SEARCH_API_URL")
	}
	return &searxClient{
		log:     log.With("service", "WebSearcher"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *searxClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := c.baseURL + "/search?format=json&q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("web search decode: %w", err)
	}

	out := make([]SearchResult, 0, maxSearchResults)
	for _, r := range payload.Results {
		if len(out) == maxSearchResults {
			break
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}

// WebSearchTool wraps a WebSearcher as an allow-listable capability.
func WebSearchTool(searcher WebSearcher) generate.ToolDef {
	return generate.ToolDef{
		Name:        "web_search",
		Description: "Search the web for up-to-date information. Returns titles, URLs and snippets.",
		Parameters: generate.Object(map[string]any{
			"query": generate.String("The search query."),
		}),
		MaxCallsPerGenerate: 3,
		MaxCallsPerSession:  12,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("web_search args: %w", err)
			}
			results, err := searcher.Search(ctx, in.Query)
			if err != nil {
				return "", err
			}
			raw, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		},
	}
}
