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

const maxVideoResults = 10

// VideoResult is one hit from the video platform search.
type VideoResult struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	AuthorName      string `json:"author_name"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	PublishedAt     int64  `json:"published_at"`
}

// VideoSearcher searches a video hosting platform.
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]VideoResult, error)
}

// rutubeClient talks to the RuTube public search API.
type rutubeClient struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewVideoSearcher(log *logger.Logger) VideoSearcher {
	return &rutubeClient{
		log:     log.With("service", "VideoSearcher"),
		baseURL: strings.TrimRight(envutil.Str("VIDEO_SEARCH_API_URL", "https://rutube.ru/api"), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *rutubeClient) Search(ctx context.Context, query string) ([]VideoResult, error) {
	endpoint := c.baseURL + "/search/video/?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video search: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Author      struct {
				Name string `json:"name"`
			} `json:"author"`
			VideoURL      string `json:"video_url"`
			Duration      int    `json:"duration"`
			PublicationTS int64  `json:"publication_ts"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("video search decode: %w", err)
	}

	out := make([]VideoResult, 0, maxVideoResults)
	for _, r := range payload.Results {
		if len(out) == maxVideoResults {
			break
		}
		out = append(out, VideoResult{
			Title:           r.Title,
			Description:     r.Description,
			AuthorName:      r.Author.Name,
			VideoURL:        r.VideoURL,
			DurationSeconds: r.Duration,
			PublishedAt:     r.PublicationTS,
		})
	}
	return out, nil
}

// VideoSearchTool wraps a VideoSearcher as an allow-listable capability.
func VideoSearchTool(searcher VideoSearcher) generate.ToolDef {
	return generate.ToolDef{
		Name:        "video_search",
		Description: "Search the video platform for educational videos. Returns titles, URLs, durations and authors.",
		Parameters: generate.Object(map[string]any{
			"query": generate.String("The video search query."),
		}),
		MaxCallsPerGenerate: 2,
		MaxCallsPerSession:  8,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("video_search args: %w", err)
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
