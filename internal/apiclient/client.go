// Package apiclient is the small HTTP layer shared by the third-party REST
// integrations (speech-to-text, text-to-speech, page scraping).
package apiclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

const (
	contentTypeJSON = "application/json"
	acceptEncoding  = "gzip"
	userAgent       = "spigell/portfolio-agent"
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 512
)

// Auth decorates an outgoing request with credentials.
type Auth func(req *http.Request)

// Bearer sets "Authorization: Bearer <token>".
func Bearer(token string) Auth {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Header sets a custom header to token, prefixed by scheme when non-empty.
func Header(name, scheme, token string) Auth {
	value := token
	if scheme != "" {
		value = scheme + " " + token
	}
	return func(req *http.Request) {
		req.Header.Set(name, value)
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %s", e.Status)
	}
	return fmt.Sprintf("bad status: %s: %s", e.Status, e.Body)
}

type Client struct {
	auth       Auth
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

// New returns a client rooted at baseURL. A zero timeout means 30s.
func New(baseURL string, auth Auth, timeout time.Duration, l *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		auth:   auth,
		logger: logger.OrNop(l),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
		BaseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// File is a single file part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// PostJSON sends payload as JSON and decodes the JSON response into target.
// A nil target discards the body.
func (c *Client) PostJSON(ctx context.Context, path string, payload, target any) error {
	body, err := c.PostJSONStream(ctx, path, payload, contentTypeJSON)
	if err != nil {
		return err
	}
	defer body.Close()

	return decode(body, target)
}

// PostJSONStream sends payload as JSON and returns the raw response body.
// The caller closes it.
func (c *Client) PostJSONStream(ctx context.Context, path string, payload any, accept string) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentTypeJSON)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	return c.do(req)
}

// PostMultipart uploads fields and file as multipart/form-data and decodes
// the JSON response into target.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file File, target any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for key, val := range fields {
		if err := w.WriteField(key, val); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
	header.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(file.Data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), &b)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return err
	}
	defer body.Close()

	return decode(body, target)
}

func (c *Client) do(req *http.Request) (io.ReadCloser, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	body, err := responseBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.auth != nil {
		c.auth(req)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	return req
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (g gzipBody) Close() error {
	g.Reader.Close()
	return g.raw.Close()
}

func responseBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}

	reader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return gzipBody{Reader: reader, raw: resp.Body}, nil
}

func decode(body io.Reader, target any) error {
	if target == nil {
		_, err := io.Copy(io.Discard, body)
		return err
	}

	if err := json.NewDecoder(body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
