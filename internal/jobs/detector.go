package jobs

import (
	"regexp"
	"strings"
)

// MinKeywordMatches is how many content keywords make a page a job posting
// when its URL alone does not.
const MinKeywordMatches = 3

var jobURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)jobs?`),
	regexp.MustCompile(`(?i)careers?`),
	regexp.MustCompile(`(?i)opportunities`),
	regexp.MustCompile(`(?i)positions?`),
	regexp.MustCompile(`(?i)openings?`),
	regexp.MustCompile(`(?i)hiring`),
	regexp.MustCompile(`(?i)recruit`),
	regexp.MustCompile(`(?i)vacancy`),
	regexp.MustCompile(`(?i)employment`),
	regexp.MustCompile(`(?i)lever\.co`),
	regexp.MustCompile(`(?i)greenhouse\.io`),
	regexp.MustCompile(`(?i)workday\.com`),
	regexp.MustCompile(`(?i)taleo\.net`),
	regexp.MustCompile(`(?i)indeed\.com`),
	regexp.MustCompile(`(?i)linkedin\.com.*/jobs`),
	regexp.MustCompile(`(?i)glassdoor\.com`),
}

var jobContentKeywords = []string{
	"job description",
	"responsibilities",
	"requirements",
	"qualifications",
	"salary",
	"benefits",
	"apply now",
	"submit application",
	"position",
	"role",
	"experience required",
	"skills",
	"education",
	"location",
	"job type",
	"full-time",
	"part-time",
	"contract",
	"remote",
}

// IsLikelyJobPosting reports whether the page at url with the given text looks
// like a job posting: either the URL matches a job pattern or the text contains
// at least MinKeywordMatches keywords.
func IsLikelyJobPosting(url, text string) bool {
	if MatchesJobURL(url) {
		return true
	}
	return len(MatchedKeywords(text)) >= MinKeywordMatches
}

// MatchesJobURL reports whether url matches any job URL pattern.
func MatchesJobURL(url string) bool {
	for _, p := range jobURLPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// MatchedKeywords returns the job keywords found in text, in keyword order.
func MatchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range jobContentKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
