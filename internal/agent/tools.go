// Package agent exposes the job analyzer and the turn decider as tools for a
// chat agent over the Model Context Protocol.
package agent

import (
	"context"
	"errors"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/jobs"
	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/turn"
)

const (
	ToolScrapeJobPosting = "scrape_job_posting"
	ToolDecideSubmit     = "decide_submit_ready"
)

// JobAnalyzer is satisfied by *jobs.Analyzer.
type JobAnalyzer interface {
	Analyze(ctx context.Context, url string) (*jobs.Result, error)
}

type Tools struct {
	Analyzer JobAnalyzer
	Decider  turn.Decider
	Logger   *zap.Logger
}

// DecisionResult is the structured output of the submit-readiness tool.
type DecisionResult struct {
	ShouldSubmit bool   `json:"shouldSubmit"`
	Verdict      string `json:"verdict"`
}

// NewServer registers the tools on a new MCP server. The scrape tool is only
// registered when an analyzer is configured.
func NewServer(name, version string, tools Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	if tools.Analyzer != nil {
		s.AddTool(mcp.NewTool(ToolScrapeJobPosting,
			mcp.WithDescription("Fetch a web page. Job postings get structured fields and a match analysis "+
				"against the candidate profile; other pages get a short summary."),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http or https URL of the page")),
		), tools.ScrapeJobPosting)
	}

	s.AddTool(mcp.NewTool(ToolDecideSubmit,
		mcp.WithDescription("Decide whether a voice transcript is a complete thought that should be submitted."),
		mcp.WithString("transcript", mcp.Required(), mcp.Description("Transcript text to classify")),
	), tools.DecideSubmit)

	return s
}

func (t Tools) ScrapeJobPosting(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil || url == "" {
		return mcp.NewToolResultError("No URL provided"), nil
	}

	res, err := t.Analyzer.Analyze(ctx, url)
	if errors.Is(err, jobs.ErrInvalidURL) {
		return mcp.NewToolResultError("Invalid URL provided"), nil
	}
	if err != nil {
		logger.OrNop(t.Logger).Warn("scrape tool failed", zap.String(logger.FieldURL, url), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("Failed to scrape webpage", err), nil
	}

	return mcp.NewToolResultJSON(res)
}

func (t Tools) DecideSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript := req.GetString("transcript", "")

	decider := t.Decider
	if decider == nil {
		decider = turn.NewRules()
	}

	out := DecisionResult{
		ShouldSubmit: turn.Decide(ctx, decider, transcript),
		Verdict:      turn.Evaluate(transcript).String(),
	}
	return mcp.NewToolResultStructured(out, strconv.FormatBool(out.ShouldSubmit)), nil
}
