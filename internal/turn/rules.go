package turn

import (
	"context"
	"strings"
	"unicode"
)

// Verdict is the outcome of the rule evaluator.
type Verdict int

const (
	// Undecided means no rule fired strongly enough either way.
	Undecided Verdict = iota
	// Submit means the transcript reads as a finished turn.
	Submit
	// Hold means the transcript is clearly still in progress.
	Hold
)

func (v Verdict) String() string {
	switch v {
	case Submit:
		return "submit"
	case Hold:
		return "hold"
	default:
		return "undecided"
	}
}

const minCommandWords = 4

var (
	conjunctions = wordSet(
		"and", "but", "so", "because", "or", "nor", "yet", "then",
		"although", "though", "since", "unless", "while", "whereas", "plus",
	)

	interjections = wordSet(
		"hmm", "hm", "hmmm", "uh", "uhh", "uhm", "um", "umm", "er", "erm",
		"ah", "ahh", "oh", "eh", "so", "well", "like", "mhm",
	)

	// Words that cannot end an unpunctuated sentence.
	danglers = wordSet(
		"a", "an", "the", "my", "your", "our", "their", "his", "her", "its",
		"of", "to", "for", "with", "about", "in", "on", "at", "from", "by", "into",
		"i", "we", "you", "they", "he", "she", "it's", "i'm", "is", "are", "was",
		"were", "be", "that", "which", "who", "if", "when", "like",
	)

	commandVerbs = wordSet(
		"summarize", "create", "explain", "give", "tell", "show", "list", "write",
		"describe", "compare", "analyze", "analyse", "find", "help", "walk", "share",
		"check", "look", "open", "read", "send",
	)

	questionWords = wordSet(
		"what", "why", "how", "who", "where", "when", "which", "can", "could",
		"would", "will", "do", "does", "did", "is", "are", "should", "have", "has",
	)

	closingPrompts = []string{
		"what do you think",
		"can you help with this",
		"does that make sense",
		"thanks",
		"thank you",
		"that's it",
		"that is all",
	}

	inProgressSuffixes = []string{
		"i think we should",
		"and then i",
		"that's why i",
		"i was going to",
		"i want to",
		"i'd like to",
	}
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Evaluate applies the deterministic turn-completion rubric. Never-submit
// signals are checked before submit signals, and anything that matches
// neither is Undecided.
func Evaluate(transcript string) Verdict {
	text := strings.TrimSpace(transcript)
	if text == "" {
		return Hold
	}

	words := strings.Fields(text)
	lower := strings.ToLower(text)
	last := normalizeWord(words[len(words)-1])

	switch {
	case strings.HasSuffix(text, "..") || strings.HasSuffix(text, "…"):
		return Hold
	case strings.HasSuffix(text, ",") || strings.HasSuffix(text, ";") ||
		strings.HasSuffix(text, ":") || strings.HasSuffix(text, "-"):
		return Hold
	case unbalanced(text):
		return Hold
	case len(words) == 1 && contains(interjections, last):
		return Hold
	case contains(conjunctions, last):
		return Hold
	}

	bare := strings.TrimRightFunc(lower, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	for _, suffix := range inProgressSuffixes {
		if strings.HasSuffix(bare, suffix) {
			return Hold
		}
	}

	if endsWithTerminal(text) {
		return Submit
	}

	if contains(danglers, last) {
		return Hold
	}

	for _, prompt := range closingPrompts {
		if strings.HasSuffix(bare, prompt) {
			return Submit
		}
	}

	first := normalizeWord(words[0])
	if len(words) >= minCommandWords && (contains(commandVerbs, first) || contains(questionWords, first)) {
		return Submit
	}

	return Undecided
}

// Rules is the deterministic Decider. Undecided transcripts are not submitted.
type Rules struct{}

// NewRules returns the rule-based Decider.
func NewRules() *Rules {
	return &Rules{}
}

func (r *Rules) Decide(_ context.Context, transcript string) (bool, error) {
	return Evaluate(transcript) == Submit, nil
}

func endsWithTerminal(text string) bool {
	trimmed := strings.TrimRightFunc(text, func(r rune) bool {
		return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’' || unicode.IsSpace(r) || isEmoji(r)
	})
	if trimmed == "" {
		return false
	}

	switch trimmed[len(trimmed)-1] {
	case '.', '?', '!':
		return true
	default:
		return false
	}
}

func isEmoji(r rune) bool {
	return r >= 0x1F300 && r <= 0x1FAFF || r >= 0x2600 && r <= 0x27BF
}

func unbalanced(text string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{', '”': '“'}
	var stack []rune
	straightQuotes := 0

	for _, r := range text {
		switch r {
		case '(', '[', '{', '“':
			stack = append(stack, r)
		case ')', ']', '}', '”':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return true
			}
			stack = stack[:len(stack)-1]
		case '"':
			straightQuotes++
		}
	}

	return len(stack) > 0 || straightQuotes%2 == 1
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\'' || unicode.IsSymbol(r)
	}))
}

func contains(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}
