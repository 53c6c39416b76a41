package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

const (
	renderSettle  = 3 * time.Second
	consentSettle = time.Second
	consentButton = `button[id*="accept"], button[class*="accept"]`
)

// ChromeRenderer renders pages in headless Chrome. Chrome or Chromium must
// be installed.
type ChromeRenderer struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewChromeRenderer(timeout time.Duration, l *zap.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChromeRenderer{timeout: timeout, logger: logger.OrNop(l)}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	r.logger.Debug("starting headless browser", zap.String(logger.FieldURL, url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(renderSettle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Cookie banners are optional; a missing button is not an error.
			clickCtx, cancel := context.WithTimeout(ctx, consentSettle)
			defer cancel()
			_ = chromedp.Click(consentButton, chromedp.NodeVisible).Do(clickCtx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	r.logger.Debug("rendered page", zap.String(logger.FieldURL, url), zap.Int("html_bytes", len(html)))
	return html, nil
}
