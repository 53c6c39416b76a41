package stt

import (
	"context"
	"strings"

	"github.com/spigell/portfolio-agent/internal/ai"
	"github.com/spigell/portfolio-agent/internal/ai/gemini"
)

const noSpeechMarker = "[no speech]"

type requestGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Gemini transcribes by sending the clip inline to a multimodal model.
type Gemini struct {
	generator requestGenerator
	template  string
}

func NewGemini(generator requestGenerator) *Gemini {
	return &Gemini{generator: generator, template: ai.MustPrompt(ai.PromptTranscribe)}
}

func (g *Gemini) Transcribe(ctx context.Context, req Request) (string, error) {
	language := req.Language
	if language == "" {
		language = "en"
	}

	text, err := g.generator.Generate(ctx, gemini.Request{
		Prompt:        ai.Render(g.template, map[string]string{"LANGUAGE": language}),
		Audio:         req.Audio,
		AudioMIMEType: req.MIMEType,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, noSpeechMarker) {
		return "", nil
	}
	return text, nil
}
