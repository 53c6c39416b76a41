package turn

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/ai"
	"github.com/spigell/portfolio-agent/internal/logger"
)

type systemGenerator interface {
	GenerateWithSystem(ctx context.Context, system, prompt string) (string, error)
}

// Model asks a language model whether the transcript is a finished turn.
// Only a strict "true" answer submits.
type Model struct {
	generator systemGenerator
	system    string
	logger    *zap.Logger
}

// NewModel returns a model-backed Decider.
func NewModel(generator systemGenerator, l *zap.Logger) *Model {
	return &Model{
		generator: generator,
		system:    ai.MustPrompt(ai.PromptTurn),
		logger:    logger.OrNop(l),
	}
}

func (m *Model) Decide(ctx context.Context, transcript string) (bool, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return false, nil
	}
	if m.generator == nil {
		return false, errors.New("turn model is not configured")
	}

	raw, err := m.generator.GenerateWithSystem(ctx, m.system, "Transcript: "+transcript)
	if err != nil {
		return false, err
	}

	ok := ParseAnswer(raw)
	m.logger.Debug("turn model answered",
		zap.String("answer", logger.TruncateForLog(raw, 20)),
		zap.Bool("submit", ok),
	)
	return ok, nil
}

// New builds the Decider for mode. A nil generator downgrades model and
// hybrid modes to the rules.
func New(mode Mode, generator systemGenerator, l *zap.Logger) Decider {
	if generator == nil {
		return NewRules()
	}

	switch mode {
	case ModeModel:
		return NewGuarded(NewModel(generator, l), l)
	case ModeHybrid:
		return NewHybrid(NewModel(generator, l), l)
	default:
		return NewRules()
	}
}
