package gemini

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/utils"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	defaultMaxRetries   = 2
	retryDelay          = 2 * time.Second
	cacheTTL            = 24 * time.Hour
)

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type contentCaches interface {
	Create(ctx context.Context, model string, config *genai.CreateCachedContentConfig) (*genai.CachedContent, error)
}

// Options tune a Generator. Zero values select defaults.
type Options struct {
	Model        string
	MaxRetries   int
	MaxLogLength int
	Temperature  *float32
	BaseURL      string
}

// Generator wraps the Google GenAI client for the prompt shapes used across
// the agent: plain text, system-instructed text, JSON and inline audio.
type Generator struct {
	models     contentModels
	caches     contentCaches
	model      string
	maxRetries int
	maxLogLen  int
	temp       *float32
	logger     *zap.Logger
	wait       func(context.Context, time.Duration) error

	cacheMu sync.Mutex
	cached  map[string]cachedContent
}

type cachedContent struct {
	name string
	hash string
}

// Request is a single generation call.
type Request struct {
	System string
	Prompt string
	// JSON asks for an application/json response. Schema, if set, is sent as
	// the response JSON schema.
	JSON   bool
	Schema any
	// Audio is attached inline before the prompt when non-empty.
	Audio         []byte
	AudioMIMEType string
	CachedContent string
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts Options, l *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, client.Caches, opts, l), nil
}

func newGenerator(models contentModels, caches contentCaches, opts Options, l *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	maxLog := opts.MaxLogLength
	if maxLog <= 0 {
		maxLog = defaultMaxLogLength
	}

	return &Generator{
		models:     models,
		caches:     caches,
		model:      model,
		maxRetries: retries,
		maxLogLen:  maxLog,
		temp:       opts.Temperature,
		logger:     logger.WithCommonFields(logger.OrNop(l), "gemini", model),
		wait:       utils.WaitFor,
	}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return g.Generate(ctx, Request{Prompt: prompt})
}

// GenerateWithSystem sends prompt with a system instruction.
func (g *Generator) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return g.Generate(ctx, Request{System: system, Prompt: prompt})
}

// GenerateJSON requests a JSON document, optionally constrained by schema.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string, schema any) (string, error) {
	return g.Generate(ctx, Request{System: system, Prompt: prompt, JSON: true, Schema: schema})
}

// Generate runs req, retrying temporary backend failures.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && len(req.Audio) == 0 {
		return "", errors.New("prompt must not be empty")
	}

	parts := make([]*genai.Part, 0, 2)
	if len(req.Audio) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Audio, req.AudioMIMEType))
	}
	if prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := g.config(req)

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.Int("audio_bytes", len(req.Audio)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			output, err := responseText(resp)
			if err != nil {
				return "", err
			}
			g.logger.Debug("gemini generate content response",
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", logger.TruncateForLog(output, g.maxLogLen)),
			)
			return output, nil
		}

		lastErr = err
		if !isTemporary(err) || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if err := g.wait(ctx, retryDelay*time.Duration(attempt)); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

func (g *Generator) config(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{Temperature: g.temp}

	if system := strings.TrimSpace(req.System); system != "" && req.CachedContent == "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.Schema
	}
	if name := strings.TrimSpace(req.CachedContent); name != "" {
		config.CachedContent = name
	}

	return config
}

// EnsureCache stores payload as cached content keyed by key and returns the
// resource name. The payload hash decides whether an existing entry is reused.
func (g *Generator) EnsureCache(ctx context.Context, key, system, payload string) (string, error) {
	if g == nil || g.caches == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", errors.New("cache payload must not be empty")
	}

	sum := sha256.Sum256([]byte(system + "\x00" + payload))
	hash := fmt.Sprintf("%x", sum[:])

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	if existing, ok := g.cached[key]; ok && existing.hash == hash {
		return existing.name, nil
	}

	cfg := &genai.CreateCachedContentConfig{
		DisplayName: key,
		TTL:         cacheTTL,
		Contents:    []*genai.Content{genai.NewContentFromText(payload, genai.RoleUser)},
	}
	if strings.TrimSpace(system) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	created, err := g.caches.Create(ctx, g.model, cfg)
	if err != nil {
		return "", fmt.Errorf("create cached content: %w", err)
	}

	name := strings.TrimSpace(created.Name)
	if name == "" {
		return "", errors.New("gemini api returned empty cache name")
	}

	if g.cached == nil {
		g.cached = make(map[string]cachedContent)
	}
	g.cached[key] = cachedContent{name: name, hash: hash}

	return name, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func isTemporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
