package ai

import (
	"strings"
	"testing"
)

func TestPromptsShipWithBinary(t *testing.T) {
	for _, name := range []string{PromptTurn, PromptAnalysis, PromptSummary, PromptExtraction, PromptTranscribe} {
		p, err := Prompt(name)
		if err != nil {
			t.Fatalf("Prompt(%q): %v", name, err)
		}
		if p == "" {
			t.Fatalf("Prompt(%q) is empty", name)
		}
	}

	if _, err := Prompt("missing"); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}

func TestRender(t *testing.T) {
	out := Render("Title: {{TITLE}}\n{{PAGE_TEXT}} {{OTHER}}", map[string]string{
		"TITLE":     "Go Engineer",
		"PAGE_TEXT": "body",
	})

	if !strings.Contains(out, "Title: Go Engineer") || !strings.Contains(out, "body") {
		t.Fatalf("unexpected render: %q", out)
	}
	if !strings.Contains(out, "{{OTHER}}") {
		t.Fatalf("expected unknown placeholder to survive: %q", out)
	}
}

func TestAnalysisPromptHasPlaceholders(t *testing.T) {
	p := MustPrompt(PromptAnalysis)
	for _, key := range []string{"{{PROFILE_JSON}}", "{{JOB_JSON}}", "{{PAGE_TEXT}}"} {
		if !strings.Contains(p, key) {
			t.Fatalf("analysis prompt missing %s", key)
		}
	}
}
