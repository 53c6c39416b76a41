package turn

import (
	"context"
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		want       Verdict
	}{
		{name: "question with punctuation", transcript: "What projects have you built recently?", want: Submit},
		{name: "statement with period", transcript: "Tell me about your work at the startup.", want: Submit},
		{name: "exclamation with emoji", transcript: "That sounds really great to me! 🙌", want: Submit},
		{name: "quoted ending", transcript: `He told me "ship it now."`, want: Submit},
		{name: "command without punctuation", transcript: "Summarize your experience with Go", want: Submit},
		{name: "question without punctuation", transcript: "How did you build the agent", want: Submit},
		{name: "closing prompt", transcript: "ok thanks", want: Submit},
		{name: "trailing and", transcript: "I worked on the backend and", want: Hold},
		{name: "trailing but with period", transcript: "I liked the role but.", want: Hold},
		{name: "trailing because", transcript: "I want to apply because", want: Hold},
		{name: "trailing so", transcript: "The team was small so", want: Hold},
		{name: "ellipsis", transcript: "I was thinking that maybe...", want: Hold},
		{name: "unicode ellipsis", transcript: "Let me think…", want: Hold},
		{name: "two dots", transcript: "Wait..", want: Hold},
		{name: "two dots after words", transcript: "So the thing I meant was..", want: Hold},
		{name: "trailing comma", transcript: "First of all,", want: Hold},
		{name: "unmatched bracket", transcript: "Tell me about the project (the one with Go.", want: Hold},
		{name: "unmatched quote", transcript: `He said "we should hire him.`, want: Hold},
		{name: "single interjection", transcript: "Hmm.", want: Hold},
		{name: "in-progress thought", transcript: "I think we should", want: Hold},
		{name: "dangling article", transcript: "Can you show me the", want: Hold},
		{name: "empty", transcript: "   ", want: Hold},
		{name: "ambiguous statement", transcript: "I really enjoyed that project", want: Undecided},
		{name: "short fragment", transcript: "cool stuff", want: Undecided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Evaluate(tt.transcript); got != tt.want {
				t.Fatalf("Evaluate(%q) = %s, want %s", tt.transcript, got, tt.want)
			}
		})
	}
}

func TestRulesDecideIsConservative(t *testing.T) {
	rules := NewRules()

	for transcript, want := range map[string]bool{
		"Could you walk me through the design?": true,
		"I really enjoyed that project":         false,
		"and then":                              false,
	} {
		got, err := rules.Decide(context.Background(), transcript)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("Decide(%q) = %v, want %v", transcript, got, want)
		}
	}
}

type stubDecider struct {
	answer bool
	err    error
	calls  []string
}

func (s *stubDecider) Decide(_ context.Context, transcript string) (bool, error) {
	s.calls = append(s.calls, transcript)
	return s.answer, s.err
}

func TestHybridDelegatesOnlyUndecided(t *testing.T) {
	delegate := &stubDecider{answer: true}
	hybrid := NewHybrid(delegate, nil)

	ok, _ := hybrid.Decide(context.Background(), "I really enjoyed that project")
	if !ok {
		t.Fatalf("expected delegate answer for undecided transcript")
	}

	ok, _ = hybrid.Decide(context.Background(), "I worked on the backend and")
	if ok {
		t.Fatalf("expected rules to hold trailing conjunction")
	}

	ok, _ = hybrid.Decide(context.Background(), "What is your favourite stack?")
	if !ok {
		t.Fatalf("expected rules to submit a complete question")
	}

	if len(delegate.calls) != 1 {
		t.Fatalf("expected exactly one delegate call, got %d", len(delegate.calls))
	}
}

func TestHybridFailsClosed(t *testing.T) {
	hybrid := NewHybrid(&stubDecider{answer: true, err: errors.New("quota")}, nil)

	ok, err := hybrid.Decide(context.Background(), "I really enjoyed that project")
	if err != nil {
		t.Fatalf("expected error to be swallowed, got %v", err)
	}
	if ok {
		t.Fatalf("expected delegate error to hold")
	}
}

func TestGuarded(t *testing.T) {
	delegate := &stubDecider{answer: true}
	guarded := NewGuarded(delegate, nil)

	if ok, _ := guarded.Decide(context.Background(), " "); ok {
		t.Fatalf("expected empty transcript to hold")
	}
	if len(delegate.calls) != 0 {
		t.Fatalf("expected no delegate call for empty transcript")
	}

	if ok, _ := guarded.Decide(context.Background(), "anything"); !ok {
		t.Fatalf("expected delegate answer")
	}

	for _, transcript := range []string{
		"I worked on the backend and",
		"I was thinking that maybe...",
		"Tell me about (the one with Go.",
		"Wait..",
	} {
		if ok, _ := guarded.Decide(context.Background(), transcript); ok {
			t.Fatalf("expected %q to hold regardless of the delegate", transcript)
		}
	}
	if len(delegate.calls) != 1 {
		t.Fatalf("expected held transcripts to skip the delegate, got %d calls", len(delegate.calls))
	}

	delegate.err = errors.New("boom")
	if ok, _ := guarded.Decide(context.Background(), "anything"); ok {
		t.Fatalf("expected delegate error to hold")
	}
}

func TestDecideHelper(t *testing.T) {
	if Decide(context.Background(), nil, "Hello there, how are you?") {
		t.Fatalf("expected nil decider to hold")
	}
	if Decide(context.Background(), &stubDecider{answer: true, err: errors.New("x")}, "hi") {
		t.Fatalf("expected error to hold")
	}
}

func TestParseAnswer(t *testing.T) {
	for raw, want := range map[string]bool{
		"true":         true,
		" TRUE\n":      true,
		"`true`":       true,
		"false":        false,
		"true, mostly": false,
		"":             false,
		"yes":          false,
	} {
		if got := ParseAnswer(raw); got != want {
			t.Fatalf("ParseAnswer(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeRules {
		t.Fatalf("expected default rules mode, got %q %v", m, err)
	}
	if m, err := ParseMode(" Hybrid "); err != nil || m != ModeHybrid {
		t.Fatalf("expected hybrid, got %q %v", m, err)
	}
	if _, err := ParseMode("oracle"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

type stubGenerator struct {
	answer string
	err    error
	system string
	prompt string
}

func (s *stubGenerator) GenerateWithSystem(_ context.Context, system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.answer, s.err
}

func TestModelDecide(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "strict true", answer: "true", want: true},
		{name: "false", answer: "false"},
		{name: "chatty answer", answer: "I think this is true"},
		{name: "backend failure", err: errors.New("unavailable"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{answer: tt.answer, err: tt.err}
			got, err := NewModel(gen, nil).Decide(context.Background(), "I really enjoyed that project")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decide() = %v, want %v", got, tt.want)
			}
			if gen.system == "" {
				t.Fatalf("expected rubric system prompt")
			}
		})
	}
}

func TestNewSelectsMode(t *testing.T) {
	gen := &stubGenerator{answer: "true"}

	if _, ok := New(ModeRules, gen, nil).(*Rules); !ok {
		t.Fatalf("expected rules decider")
	}
	if _, ok := New(ModeHybrid, gen, nil).(*Hybrid); !ok {
		t.Fatalf("expected hybrid decider")
	}
	if _, ok := New(ModeModel, gen, nil).(*Guarded); !ok {
		t.Fatalf("expected guarded model decider")
	}
	if _, ok := New(ModeModel, nil, nil).(*Rules); !ok {
		t.Fatalf("expected rules fallback without generator")
	}

	model := New(ModeModel, gen, nil)
	for _, transcript := range []string{
		"I worked on the backend and",
		"I was thinking that maybe...",
		"Tell me about (the one with Go.",
	} {
		if Decide(context.Background(), model, transcript) {
			t.Fatalf("expected model mode to hold %q", transcript)
		}
	}
	if !Decide(context.Background(), model, "I really enjoyed that project") {
		t.Fatalf("expected model mode to follow the delegate on undecided transcripts")
	}

	// Model mode with a failing backend never submits.
	failing := New(ModeModel, &stubGenerator{err: errors.New("down")}, nil)
	if Decide(context.Background(), failing, "Tell me about your work.") {
		t.Fatalf("expected failing delegate to hold")
	}
}
