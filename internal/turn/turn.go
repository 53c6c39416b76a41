// Package turn decides whether a transcribed utterance is a finished thought
// that can be submitted to the chat, or whether the speaker is still going.
package turn

import (
	"context"
	"fmt"
	"strings"
)

// Decider returns true when transcript is ready to be submitted. Any error
// must be treated by callers as "not ready".
type Decider interface {
	Decide(ctx context.Context, transcript string) (bool, error)
}

// Mode selects a Decider implementation.
type Mode string

const (
	ModeRules  Mode = "rules"
	ModeModel  Mode = "model"
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a configured mode. An empty value means ModeRules.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRules:
		return ModeRules, nil
	case ModeModel:
		return ModeModel, nil
	case ModeHybrid:
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("unsupported turn mode %q", s)
	}
}

// Decide runs d and folds errors into a conservative false.
func Decide(ctx context.Context, d Decider, transcript string) bool {
	if d == nil {
		return false
	}

	ok, err := d.Decide(ctx, transcript)
	if err != nil {
		return false
	}
	return ok
}
