// Package scrape fetches web pages and pulls structured data out of them.
package scrape

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds every page fetch and extraction call.
const DefaultTimeout = 30 * time.Second

// Page is a fetched document.
type Page struct {
	URL        string
	Title      string
	HTML       string
	Text       string
	StatusCode int
	Metadata   map[string]any
}

type FetchOptions struct {
	// MainContentOnly strips navigation, forms and other page chrome.
	MainContentOnly bool
}

// Fetcher is the page-fetch boundary.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*Page, error)
}

// Extractor is the structured-extraction boundary. The result is a best-effort
// object shaped by schema; every field is optional.
type Extractor interface {
	Extract(ctx context.Context, url string, page *Page, schema map[string]any) (map[string]any, error)
}

// FetchError reports a failed fetch. StatusCode is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, msg, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, msg)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
