package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
)

const maxPageBytes = 2 << 20
const maxPageText = 20000

// PageBrowser fetches a web page and reduces it to readable text.
type PageBrowser interface {
	Browse(ctx context.Context, pageURL string) (string, error)
}

type pageBrowser struct {
	log  *logger.Logger
	http *http.Client
}

func NewPageBrowser(log *logger.Logger) PageBrowser {
	return &pageBrowser{
		log:  log.With("service", "PageBrowser"),
		http: &http.Client{Timeout: 20 * time.Second},
	}
}

func (b *pageBrowser) Browse(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "coursegen-backend/1.0")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("browse %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browse %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("browse %s: parse: %w", pageURL, err)
	}
	text := ExtractText(doc)
	if len(text) > maxPageText {
		text = text[:maxPageText]
	}
	return text, nil
}

// ExtractText walks the DOM collecting visible text, skipping script and
// style subtrees. Block elements become paragraph breaks.
func ExtractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
				sb.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// BrowsePageTool wraps a PageBrowser as an allow-listable capability.
func BrowsePageTool(browser PageBrowser) generate.ToolDef {
	return generate.ToolDef{
		Name:        "browse_page",
		Description: "Fetch a web page by URL and return its readable text.",
		Parameters: generate.Object(map[string]any{
			"url": generate.String("Absolute URL of the page to read."),
		}),
		MaxCallsPerGenerate: 3,
		MaxCallsPerSession:  10,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("browse_page args: %w", err)
			}
			text, err := browser.Browse(ctx, in.URL)
			if err != nil {
				// A dead link should not abort the whole stage.
				return fmt.Sprintf("could not load the page: %v", err), nil
			}
			return text, nil
		},
	}
}
