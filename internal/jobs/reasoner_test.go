package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/portfolio-agent/internal/ai/gemini"
	"github.com/spigell/portfolio-agent/internal/scrape"
)

const validAnalysisJSON = `{
	"jobTitle": "Backend Engineer",
	"subScores": {"skills": 90, "experience": 60, "projects": 70, "other": 40},
	"matchingSkills": ["Go"],
	"talkingPoints": ["Streaming pipelines"],
	"summary": "Good fit."
}`

type fakeGenerator struct {
	response string
	err      error
	requests []gemini.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

type cachingGenerator struct {
	fakeGenerator
	cacheName string
	cacheErr  error
	payloads  []string
}

func (c *cachingGenerator) EnsureCache(_ context.Context, _, _, payload string) (string, error) {
	c.payloads = append(c.payloads, payload)
	return c.cacheName, c.cacheErr
}

func analysisInput(t *testing.T) AnalysisInput {
	t.Helper()
	profile, err := LoadProfile("")
	require.NoError(t, err)
	return AnalysisInput{
		URL:     greenhouseURL,
		Fields:  &JobFields{JobTitle: "Backend Engineer", RequiredSkills: []string{"Go"}},
		Page:    postingPage(),
		Profile: profile,
	}
}

func TestGeminiReasonerAnalyze(t *testing.T) {
	gen := &fakeGenerator{response: validAnalysisJSON}
	r := NewGeminiReasoner(gen, ReasonerConfig{}, nil)
	in := analysisInput(t)

	a, err := r.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", a.JobTitle)
	assert.Equal(t, 90.0, a.SubScores.Skills)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.True(t, req.JSON)
	assert.NotNil(t, req.Schema)
	assert.Empty(t, req.CachedContent)
	assert.Contains(t, req.Prompt, in.Profile.Name)
	assert.Contains(t, req.Prompt, `"jobTitle": "Backend Engineer"`)
	assert.Contains(t, req.Prompt, "Requirements: Go, Kubernetes, Rust.")
	assert.Contains(t, req.Prompt, "Weighted 40%")
	assert.NotContains(t, req.Prompt, "{{")
}

func TestGeminiReasonerAnalyzeErrors(t *testing.T) {
	in := analysisInput(t)

	r := NewGeminiReasoner(&fakeGenerator{err: errors.New("boom")}, ReasonerConfig{}, nil)
	_, err := r.Analyze(context.Background(), in)
	assert.EqualError(t, err, "boom")

	r = NewGeminiReasoner(&fakeGenerator{response: `{"summary": "no scores"}`}, ReasonerConfig{}, nil)
	_, err = r.Analyze(context.Background(), in)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)

	_, err = r.Analyze(context.Background(), AnalysisInput{Page: in.Page})
	assert.Error(t, err)
}

func TestGeminiReasonerUsesProfileCache(t *testing.T) {
	gen := &cachingGenerator{fakeGenerator: fakeGenerator{response: validAnalysisJSON}, cacheName: "cachedContents/abc"}
	r := NewGeminiReasoner(gen, ReasonerConfig{CacheProfile: true}, nil)
	in := analysisInput(t)

	_, err := r.Analyze(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, "cachedContents/abc", gen.requests[0].CachedContent)
	assert.Contains(t, gen.requests[0].Prompt, cachedProfileNote)
	require.Len(t, gen.payloads, 1)
	assert.Contains(t, gen.payloads[0], in.Profile.Name)
}

func TestGeminiReasonerFallsBackWhenCacheFails(t *testing.T) {
	gen := &cachingGenerator{fakeGenerator: fakeGenerator{response: validAnalysisJSON}, cacheErr: errors.New("too small")}
	r := NewGeminiReasoner(gen, ReasonerConfig{CacheProfile: true}, nil)
	in := analysisInput(t)

	_, err := r.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, gen.requests[0].CachedContent)
	assert.Contains(t, gen.requests[0].Prompt, in.Profile.Name)
}

func TestGeminiReasonerSummarize(t *testing.T) {
	gen := &fakeGenerator{response: "  An about page for a coffee company.  "}
	r := NewGeminiReasoner(gen, ReasonerConfig{}, nil)

	summary, err := r.Summarize(context.Background(), &scrape.Page{Title: "About", Text: "We love coffee."})
	require.NoError(t, err)
	assert.Equal(t, "An about page for a coffee company.", summary)
	assert.Contains(t, gen.requests[0].Prompt, "We love coffee.")
	assert.False(t, gen.requests[0].JSON)

	gen.response = " "
	_, err = r.Summarize(context.Background(), &scrape.Page{Text: "x"})
	assert.Error(t, err)

	_, err = r.Summarize(context.Background(), &scrape.Page{})
	assert.Error(t, err)
}
