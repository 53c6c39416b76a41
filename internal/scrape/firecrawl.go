package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/apiclient"
	"github.com/spigell/portfolio-agent/internal/logger"
)

const firecrawlURL = "https://api.firecrawl.dev/v1"

// Firecrawl fetches and extracts through the Firecrawl scrape API. It serves
// as both a Fetcher (markdown) and an Extractor (schema-driven JSON).
type Firecrawl struct {
	client  *apiclient.Client
	timeout time.Duration
	logger  *zap.Logger
}

type FirecrawlConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func NewFirecrawl(cfg FirecrawlConfig, l *zap.Logger) *Firecrawl {
	if cfg.BaseURL == "" {
		cfg.BaseURL = firecrawlURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	l = logger.OrNop(l)
	// The HTTP client gets headroom over the server-side scrape timeout.
	client := apiclient.New(cfg.BaseURL, apiclient.Bearer(cfg.APIKey), cfg.Timeout+10*time.Second, l)
	return &Firecrawl{client: client, timeout: cfg.Timeout, logger: l}
}

type firecrawlRequest struct {
	URL             string               `json:"url"`
	Formats         []string             `json:"formats"`
	OnlyMainContent bool                 `json:"onlyMainContent"`
	Timeout         int64                `json:"timeout"`
	JSONOptions     *firecrawlJSONOption `json:"jsonOptions,omitempty"`
}

type firecrawlJSONOption struct {
	Schema map[string]any `json:"schema"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string         `json:"markdown"`
		HTML     string         `json:"html"`
		JSON     map[string]any `json:"json"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

func (f *Firecrawl) scrape(ctx context.Context, url string, req firecrawlRequest) (*firecrawlResponse, error) {
	req.URL = url
	req.Timeout = f.timeout.Milliseconds()

	var resp firecrawlResponse
	if err := f.client.PostJSON(ctx, "/scrape", req, &resp); err != nil {
		var statusErr *apiclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, &FetchError{URL: url, StatusCode: statusErr.StatusCode, Message: "firecrawl scrape failed", Cause: err}
		}
		return nil, &FetchError{URL: url, Message: "firecrawl scrape failed", Cause: err}
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "firecrawl reported failure"
		}
		return nil, &FetchError{URL: url, Message: msg}
	}

	return &resp, nil
}

func (f *Firecrawl) Fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error) {
	resp, err := f.scrape(ctx, url, firecrawlRequest{
		Formats:         []string{"markdown"},
		OnlyMainContent: opts.MainContentOnly,
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(resp.Data.Markdown) == "" {
		return nil, &FetchError{URL: url, Message: "firecrawl returned no content"}
	}

	return pageFromFirecrawl(url, resp), nil
}

// Extract re-scrapes the full page with the schema and returns the JSON
// object Firecrawl produced. The page argument is not used.
func (f *Firecrawl) Extract(ctx context.Context, url string, _ *Page, schema map[string]any) (map[string]any, error) {
	resp, err := f.scrape(ctx, url, firecrawlRequest{
		Formats:         []string{"markdown", "json"},
		OnlyMainContent: false,
		JSONOptions:     &firecrawlJSONOption{Schema: schema},
	})
	if err != nil {
		return nil, err
	}

	if resp.Data.JSON == nil {
		return map[string]any{}, nil
	}
	return resp.Data.JSON, nil
}

func pageFromFirecrawl(url string, resp *firecrawlResponse) *Page {
	page := &Page{
		URL:      url,
		Text:     resp.Data.Markdown,
		HTML:     resp.Data.HTML,
		Metadata: resp.Data.Metadata,
	}
	if page.Metadata == nil {
		page.Metadata = map[string]any{}
	}
	if title, ok := page.Metadata["title"].(string); ok {
		page.Title = strings.TrimSpace(title)
	}
	switch code := page.Metadata["statusCode"].(type) {
	case float64:
		page.StatusCode = int(code)
	case int:
		page.StatusCode = code
	}
	return page
}
