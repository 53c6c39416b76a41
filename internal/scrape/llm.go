package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/ai"
	"github.com/spigell/portfolio-agent/internal/logger"
)

const maxExtractionText = 30000

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema any) (string, error)
}

// LLMExtractor asks a language model to fill the schema from the page text.
type LLMExtractor struct {
	generator jsonGenerator
	template  string
	logger    *zap.Logger
}

func NewLLMExtractor(generator jsonGenerator, l *zap.Logger) *LLMExtractor {
	return &LLMExtractor{
		generator: generator,
		template:  ai.MustPrompt(ai.PromptExtraction),
		logger:    logger.OrNop(l),
	}
}

func (e *LLMExtractor) Extract(ctx context.Context, url string, page *Page, schema map[string]any) (map[string]any, error) {
	if page == nil || strings.TrimSpace(page.Text) == "" {
		return nil, fmt.Errorf("no page text to extract from")
	}

	prompt := ai.Render(e.template, map[string]string{
		"URL":       url,
		"PAGE_TEXT": TruncateText(page.Text, maxExtractionText),
	})

	raw, err := e.generator.GenerateJSON(ctx, "", prompt, schema)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}

	e.logger.Debug("extracted fields", zap.String(logger.FieldURL, url), zap.Int("fields", len(out)))
	return out, nil
}

// CleanJSON strips markdown code fences that models sometimes wrap JSON in.
func CleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// TruncateText caps text at limit runes.
func TruncateText(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
