package scrape

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

const (
	userAgent = "Mozilla/5.0 (compatible; portfolio-agent/1.0)"
	// MinContentLength is the extracted text length below which a page is
	// assumed to be rendered client-side.
	MinContentLength = 500
	maxBodyBytes     = 5 << 20
)

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

type HTTPConfig struct {
	Timeout time.Duration
	// Renderer, when set, is used for pages whose static HTML carries too
	// little text.
	Renderer Renderer
}

// HTTPFetcher downloads pages directly and extracts their text with goquery.
type HTTPFetcher struct {
	client   *http.Client
	renderer Renderer
	logger   *zap.Logger
}

func NewHTTPFetcher(cfg HTTPConfig, l *zap.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		renderer: cfg.Renderer,
		logger:   logger.OrNop(l),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	f.logger.Debug("fetching page", zap.String(logger.FieldURL, url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "HTTP request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	page, err := parsePage(url, string(body), opts)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Message: "failed to parse HTML", Cause: err}
	}
	page.StatusCode = resp.StatusCode
	page.Metadata["contentType"] = resp.Header.Get("Content-Type")

	if f.renderer != nil && len(page.Text) < MinContentLength {
		f.logger.Debug("page text too short, rendering in browser",
			zap.String(logger.FieldURL, url),
			zap.Int("text_length", len(page.Text)),
		)
		rendered, err := f.render(ctx, url, opts)
		if err == nil {
			rendered.StatusCode = resp.StatusCode
			return rendered, nil
		}
		f.logger.Warn("browser rendering failed, keeping static page", zap.Error(err))
	}

	return page, nil
}

func (f *HTTPFetcher) render(ctx context.Context, url string, opts FetchOptions) (*Page, error) {
	html, err := f.renderer.Render(ctx, url)
	if err != nil {
		return nil, err
	}

	page, err := parsePage(url, html, opts)
	if err != nil {
		return nil, err
	}
	page.Metadata["rendered"] = true
	return page, nil
}

func parsePage(url, html string, opts FetchOptions) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	page := &Page{
		URL:      url,
		HTML:     html,
		Title:    pageTitle(doc),
		Metadata: map[string]any{"sourceURL": url},
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Metadata["description"] = strings.TrimSpace(desc)
	}
	if page.Title != "" {
		page.Metadata["title"] = page.Title
	}

	doc.Find(chromeSelectors).Remove()

	platform := DetectPlatform(url)
	content := doc.Find("body")
	if opts.MainContentOnly {
		if noise := NoiseSelectors(platform); len(noise) > 0 {
			doc.Find(strings.Join(noise, ", ")).Remove()
		}
		for _, selector := range ContentSelectors(platform) {
			if sel := doc.Find(selector); sel.Length() > 0 {
				content = sel.First()
				break
			}
		}
	}
	if content.Length() == 0 {
		content = doc.Selection
	}

	page.Text = cleanWhitespace(blockText(content))
	return page, nil
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// blockText keeps block elements on separate lines so words from adjacent
// elements do not run together.
func blockText(sel *goquery.Selection) string {
	sel.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return sel.Text()
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
