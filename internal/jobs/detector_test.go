package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLikelyJobPosting(t *testing.T) {
	tests := []struct {
		name string
		url  string
		text string
		want bool
	}{
		{
			name: "job board url and keywords",
			url:  "https://boards.greenhouse.io/acme/jobs/123",
			text: "Responsibilities: ship things. Requirements: Go. Salary: 100k. Full-time.",
			want: true,
		},
		{
			name: "generic page",
			url:  "https://example.com/about-us",
			text: "We are a small team that loves coffee and open source.",
			want: false,
		},
		{
			name: "url pattern alone",
			url:  "https://acme.com/careers/backend",
			text: "",
			want: true,
		},
		{
			name: "linkedin jobs path",
			url:  "https://www.linkedin.com/in/someone/jobs",
			text: "",
			want: true,
		},
		{
			name: "three keywords without url match",
			url:  "https://acme.com/blog/post",
			text: "QUALIFICATIONS and Benefits, fully REMOTE",
			want: true,
		},
		{
			name: "two keywords are not enough",
			url:  "https://acme.com/blog/post",
			text: "Our benefits are great and we are remote friendly.",
			want: false,
		},
		{
			name: "case insensitive url",
			url:  "https://ACME.LEVER.CO/abc",
			text: "",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLikelyJobPosting(tt.url, tt.text))
		})
	}
}

func TestIsLikelyJobPostingIsPure(t *testing.T) {
	url := "https://boards.greenhouse.io/acme/jobs/123"
	text := "responsibilities requirements salary full-time"

	first := IsLikelyJobPosting(url, text)
	second := IsLikelyJobPosting(url, text)

	assert.True(t, first)
	assert.Equal(t, first, second)
}

func TestMatchedKeywords(t *testing.T) {
	got := MatchedKeywords("Responsibilities include X. Requirements: Y. Salary: Z. Full-time.")
	assert.Equal(t, []string{"responsibilities", "requirements", "salary", "full-time"}, got)
	assert.Empty(t, MatchedKeywords("nothing relevant here"))
}
