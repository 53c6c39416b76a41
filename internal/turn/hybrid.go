package turn

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
)

// Hybrid consults the rules first and only asks the delegate about
// transcripts the rules leave Undecided.
type Hybrid struct {
	delegate Decider
	logger   *zap.Logger
}

// NewHybrid returns a rules-first Decider backed by delegate.
func NewHybrid(delegate Decider, l *zap.Logger) *Hybrid {
	return &Hybrid{delegate: delegate, logger: logger.OrNop(l)}
}

func (h *Hybrid) Decide(ctx context.Context, transcript string) (bool, error) {
	verdict := Evaluate(transcript)
	if verdict != Undecided || h.delegate == nil {
		h.logger.Debug("turn decided by rules", zap.Stringer("verdict", verdict))
		return verdict == Submit, nil
	}

	ok, err := h.delegate.Decide(ctx, transcript)
	if err != nil {
		h.logger.Warn("turn delegate failed, holding", zap.Error(err))
		return false, nil
	}

	h.logger.Debug("turn decided by delegate", zap.Bool("submit", ok))
	return ok, nil
}

// Guarded wraps a delegate so that transcripts the rules Hold never reach it
// and delegate errors collapse to false. Everything else is the delegate's call.
type Guarded struct {
	delegate Decider
	logger   *zap.Logger
}

// NewGuarded returns the Decider used in model mode.
func NewGuarded(delegate Decider, l *zap.Logger) *Guarded {
	return &Guarded{delegate: delegate, logger: logger.OrNop(l)}
}

func (g *Guarded) Decide(ctx context.Context, transcript string) (bool, error) {
	if g.delegate == nil {
		return false, nil
	}
	if verdict := Evaluate(transcript); verdict == Hold {
		g.logger.Debug("turn held by rules", zap.Stringer("verdict", verdict))
		return false, nil
	}

	ok, err := g.delegate.Decide(ctx, transcript)
	if err != nil {
		g.logger.Warn("turn delegate failed, holding", zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// ParseAnswer reads a delegate's strict boolean token. Anything other than a
// lone "true" is false.
func ParseAnswer(raw string) bool {
	answer := strings.ToLower(strings.TrimSpace(raw))
	answer = strings.Trim(answer, "`\"'. \n")
	return answer == "true"
}
