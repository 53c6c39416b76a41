package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/portfolio-agent/internal/jobs"
)

type fakeAnalyzer struct {
	result *jobs.Result
	err    error
	urls   []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, url string) (*jobs.Result, error) {
	f.urls = append(f.urls, url)
	return f.result, f.err
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("portfolio-agent", "test", Tools{Analyzer: &fakeAnalyzer{}})
	assert.NotNil(t, s.GetTool(ToolScrapeJobPosting))
	assert.NotNil(t, s.GetTool(ToolDecideSubmit))

	s = NewServer("portfolio-agent", "test", Tools{})
	assert.Nil(t, s.GetTool(ToolScrapeJobPosting))
	assert.NotNil(t, s.GetTool(ToolDecideSubmit))
}

func TestScrapeJobPosting(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &jobs.Result{
		URL:          "https://boards.greenhouse.io/acme/jobs/123",
		IsJobPosting: true,
		Title:        "Backend Engineer",
		Analysis:     &jobs.Analysis{MatchScore: 72, Summary: "Good fit."},
	}}
	tools := Tools{Analyzer: analyzer}

	res, err := tools.ScrapeJobPosting(context.Background(), callRequest(ToolScrapeJobPosting, map[string]any{
		"url": "https://boards.greenhouse.io/acme/jobs/123",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var decoded jobs.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &decoded))
	assert.True(t, decoded.IsJobPosting)
	assert.Equal(t, 72, decoded.Analysis.MatchScore)
	assert.Equal(t, []string{"https://boards.greenhouse.io/acme/jobs/123"}, analyzer.urls)
}

func TestScrapeJobPostingErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		err  error
		want string
	}{
		{name: "missing url", args: map[string]any{}, want: "No URL provided"},
		{name: "invalid url", args: map[string]any{"url": "nope"}, err: fmt.Errorf("%w: nope", jobs.ErrInvalidURL), want: "Invalid URL provided"},
		{name: "stage failure", args: map[string]any{"url": "https://x.io/jobs"}, err: errors.New("upstream 500"), want: "Failed to scrape webpage: upstream 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := Tools{Analyzer: &fakeAnalyzer{err: tt.err}}
			res, err := tools.ScrapeJobPosting(context.Background(), callRequest(ToolScrapeJobPosting, tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Equal(t, tt.want, resultText(t, res))
		})
	}
}

type erroringDecider struct{}

func (erroringDecider) Decide(context.Context, string) (bool, error) {
	return true, errors.New("model down")
}

func TestDecideSubmit(t *testing.T) {
	tests := []struct {
		name       string
		tools      Tools
		transcript string
		want       bool
		verdict    string
	}{
		{name: "complete sentence", transcript: "What projects have you built with Go?", want: true, verdict: "submit"},
		{name: "trailing conjunction", transcript: "I worked on the data platform and", want: false, verdict: "hold"},
		{name: "decider error fails closed", tools: Tools{Decider: erroringDecider{}}, transcript: "Tell me about your experience.", want: false, verdict: "submit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.tools.DecideSubmit(context.Background(), callRequest(ToolDecideSubmit, map[string]any{
				"transcript": tt.transcript,
			}))
			require.NoError(t, err)

			out, ok := res.StructuredContent.(DecisionResult)
			require.True(t, ok)
			assert.Equal(t, tt.want, out.ShouldSubmit)
			assert.Equal(t, tt.verdict, out.Verdict)
			assert.Equal(t, fmt.Sprint(tt.want), resultText(t, res))
		})
	}
}
