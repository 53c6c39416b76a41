// Package ai holds the prompt templates shared by the model-backed
// components.
package ai

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Prompt names.
const (
	PromptTurn       = "turn"
	PromptAnalysis   = "analysis"
	PromptSummary    = "summary"
	PromptExtraction = "extraction"
	PromptTranscribe = "transcribe"
)

// Prompt returns the raw template called name.
func Prompt(name string) (string, error) {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("prompt %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// MustPrompt is Prompt for templates that ship with the binary.
func MustPrompt(name string) string {
	p, err := Prompt(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Render replaces {{KEY}} placeholders in template with vars. Unknown
// placeholders are left as they are.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
