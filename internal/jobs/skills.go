package jobs

import (
	"strings"
	"unicode"
)

// OverlapSkills splits required into the skills the candidate has and the
// ones they lack. A required skill matches a profile skill when the two are
// equal after normalisation or one contains the other as a whole phrase,
// so "Go" matches "Go" but not "Google".
func OverlapSkills(required, profile []string) (matching, missing []string) {
	normalized := make([]string, 0, len(profile))
	for _, s := range profile {
		if n := normalizeSkill(s); n != "" {
			normalized = append(normalized, n)
		}
	}

	seen := make(map[string]struct{})
	for _, skill := range required {
		n := normalizeSkill(skill)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}

		if hasSkill(normalized, n) {
			matching = append(matching, strings.TrimSpace(skill))
		} else {
			missing = append(missing, strings.TrimSpace(skill))
		}
	}
	return matching, missing
}

// fillSkillOverlap completes a with a deterministic overlap when the
// reasoning step left the skill lists empty.
func fillSkillOverlap(a *Analysis, fields *JobFields, p *Profile) {
	if len(a.RequiredSkills) == 0 && fields != nil {
		a.RequiredSkills = append([]string(nil), fields.RequiredSkills...)
	}
	if len(a.RequiredSkills) == 0 || p == nil {
		return
	}
	if len(a.MatchingSkills) > 0 && len(a.MissingSkills) > 0 {
		return
	}

	matching, missing := OverlapSkills(a.RequiredSkills, p.Skills())
	if len(a.MatchingSkills) == 0 {
		a.MatchingSkills = matching
	}
	if len(a.MissingSkills) == 0 {
		a.MissingSkills = missing
	}
}

func hasSkill(profile []string, skill string) bool {
	for _, p := range profile {
		if p == skill || containsPhrase(p, skill) || containsPhrase(skill, p) {
			return true
		}
	}
	return false
}

func normalizeSkill(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".,;:")
}

// containsPhrase reports whether needle occurs in haystack bounded by
// non-alphanumeric runes or the string edges.
func containsPhrase(haystack, needle string) bool {
	if len(needle) < 2 || len(needle) >= len(haystack) {
		return false
	}
	for offset := 0; offset < len(haystack); {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if boundary(haystack, start-1) && boundary(haystack, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
}
