package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/ai"
	"github.com/spigell/portfolio-agent/internal/ai/gemini"
	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/scrape"
)

const (
	defaultMaxPageText  = 30000
	defaultMaxLogLength = 200
	profileCacheKey     = "candidate-profile"
	cachedProfileNote   = "(provided in the cached context)"
)

// AnalysisInput is everything the reasoning step sees for one posting.
type AnalysisInput struct {
	URL     string
	Fields  *JobFields
	Page    *scrape.Page
	Profile *Profile
}

// Reasoner is the reasoning/matching boundary. Analyze returns an unscored
// Analysis that already passed the response schema.
type Reasoner interface {
	Analyze(ctx context.Context, in AnalysisInput) (*Analysis, error)
	Summarize(ctx context.Context, page *scrape.Page) (string, error)
}

type requestGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

type contextCacher interface {
	EnsureCache(ctx context.Context, key, system, payload string) (string, error)
}

type ReasonerConfig struct {
	MaxPageText  int
	MaxLogLength int
	// CacheProfile stores the profile as cached model context when the
	// generator supports it. Cache failures fall back to inlining.
	CacheProfile bool
}

// GeminiReasoner implements Reasoner on a Gemini generator.
type GeminiReasoner struct {
	generator      requestGenerator
	analysisPrompt string
	summaryPrompt  string
	maxPageText    int
	maxLogLen      int
	cacheProfile   bool
	logger         *zap.Logger
}

func NewGeminiReasoner(generator requestGenerator, cfg ReasonerConfig, l *zap.Logger) *GeminiReasoner {
	if cfg.MaxPageText <= 0 {
		cfg.MaxPageText = defaultMaxPageText
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}

	return &GeminiReasoner{
		generator:      generator,
		analysisPrompt: ai.MustPrompt(ai.PromptAnalysis),
		summaryPrompt:  ai.MustPrompt(ai.PromptSummary),
		maxPageText:    cfg.MaxPageText,
		maxLogLen:      cfg.MaxLogLength,
		cacheProfile:   cfg.CacheProfile,
		logger:         logger.OrNop(l),
	}
}

func (r *GeminiReasoner) Analyze(ctx context.Context, in AnalysisInput) (*Analysis, error) {
	if in.Profile == nil {
		return nil, errors.New("candidate profile is required")
	}
	if in.Page == nil {
		return nil, errors.New("page is required")
	}

	profileJSON, err := in.Profile.PromptPayload()
	if err != nil {
		return nil, err
	}

	fields := in.Fields
	if fields == nil {
		fields = &JobFields{}
	}
	fieldsJSON, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job fields: %w", err)
	}

	req := gemini.Request{JSON: true, Schema: AnalysisResponseSchema()}
	if name := r.cachedProfile(ctx, profileJSON); name != "" {
		req.CachedContent = name
		profileJSON = cachedProfileNote
	}
	req.Prompt = ai.Render(r.analysisPrompt, map[string]string{
		"PROFILE_JSON": profileJSON,
		"JOB_JSON":     string(fieldsJSON),
		"PAGE_TEXT":    scrape.TruncateText(in.Page.Text, r.maxPageText),
	})

	r.logger.Debug("analysis request",
		zap.String(logger.FieldURL, in.URL),
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(req.Prompt, r.maxLogLen)),
		zap.Bool("cached_profile", req.CachedContent != ""),
	)

	raw, err := r.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("analysis response",
		zap.String(logger.FieldURL, in.URL),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, r.maxLogLen)),
	)

	return ParseAnalysis(raw)
}

// ParseAnalysis decodes and schema-checks a raw reasoning response.
func ParseAnalysis(raw string) (*Analysis, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(scrape.CleanJSON(raw)), &doc); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	if err := ValidateAnalysisDocument(doc); err != nil {
		return nil, err
	}
	return decodeAnalysis(doc)
}

func (r *GeminiReasoner) Summarize(ctx context.Context, page *scrape.Page) (string, error) {
	if page == nil || strings.TrimSpace(page.Text) == "" {
		return "", errors.New("no page text to summarize")
	}

	prompt := ai.Render(r.summaryPrompt, map[string]string{
		"TITLE":     page.Title,
		"PAGE_TEXT": scrape.TruncateText(page.Text, r.maxPageText),
	})

	raw, err := r.generator.Generate(ctx, gemini.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

func (r *GeminiReasoner) cachedProfile(ctx context.Context, profileJSON string) string {
	if !r.cacheProfile {
		return ""
	}
	cacher, ok := r.generator.(contextCacher)
	if !ok {
		return ""
	}

	name, err := cacher.EnsureCache(ctx, profileCacheKey, "", "Candidate profile (JSON):\n"+profileJSON)
	if err != nil {
		r.logger.Warn("profile cache unavailable, sending profile inline", zap.Error(err))
		return ""
	}
	return name
}
