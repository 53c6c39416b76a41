// Package jobs classifies pages as job postings and scores postings against a
// candidate profile.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/portfolio-agent/internal/logger"
	"github.com/spigell/portfolio-agent/internal/scrape"
)

const (
	defaultJobTitle  = "Job Posting"
	defaultPageTitle = "No title found"
)

var ErrInvalidURL = errors.New("invalid url")

type Stage string

const (
	StageFetch      Stage = "fetch"
	StageExtraction Stage = "extraction"
	StageAnalysis   Stage = "analysis"
)

// StageError reports which step of the pipeline failed.
type StageError struct {
	Stage Stage
	URL   string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.URL, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

type Deps struct {
	Fetcher   scrape.Fetcher
	Extractor scrape.Extractor
	Reasoner  Reasoner
	Profile   *Profile
	Logger    *zap.Logger
	// OnStageError, if set, is called with every stage failure.
	OnStageError func(*StageError)
}

type Config struct {
	// Timeout bounds each fetch, extraction and reasoning call.
	Timeout time.Duration
	Weights Weights
}

// Result is the outcome of analyzing one URL. Job postings carry Structured
// and Analysis; other pages carry Summary.
type Result struct {
	URL          string         `json:"url"`
	IsJobPosting bool           `json:"isJobPosting"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary,omitempty"`
	Structured   *JobFields     `json:"structuredData,omitempty"`
	Analysis     *Analysis      `json:"analysis,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type Analyzer struct {
	deps    Deps
	timeout time.Duration
	weights Weights
	logger  *zap.Logger
}

func NewAnalyzer(deps Deps, cfg Config) (*Analyzer, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.Reasoner == nil {
		return nil, errors.New("reasoner is required")
	}
	if deps.Profile == nil {
		return nil, errors.New("candidate profile is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = scrape.DefaultTimeout
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}

	return &Analyzer{
		deps:    deps,
		timeout: cfg.Timeout,
		weights: cfg.Weights,
		logger:  logger.OrNop(deps.Logger),
	}, nil
}

// Analyze fetches rawURL, decides whether it is a job posting and returns
// either a scored analysis or a plain summary. Nothing partial is returned on
// error.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (*Result, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	log := a.logger.With(zap.String(logger.FieldURL, target))

	log.Debug("fetching page")
	page, err := a.fetch(ctx, target, scrape.FetchOptions{MainContentOnly: true})
	if err != nil {
		return nil, a.fail(StageFetch, target, err)
	}

	if !IsLikelyJobPosting(target, page.Text) {
		log.Info("page is not a job posting")
		return a.summarize(ctx, log, target, page)
	}

	log.Info("page looks like a job posting",
		zap.Strings("keywords", MatchedKeywords(page.Text)),
		zap.Bool("url_match", MatchesJobURL(target)),
	)
	return a.analyzePosting(ctx, log, target)
}

func (a *Analyzer) summarize(ctx context.Context, log *zap.Logger, target string, page *scrape.Page) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	summary, err := a.deps.Reasoner.Summarize(callCtx, page)
	if err != nil {
		return nil, a.fail(StageAnalysis, target, err)
	}

	log.Debug("page summarized", zap.Int("summary_length", len(summary)))
	return &Result{
		URL:      target,
		Title:    firstNonEmpty(page.Title, defaultPageTitle),
		Summary:  summary,
		Metadata: page.Metadata,
	}, nil
}

func (a *Analyzer) analyzePosting(ctx context.Context, log *zap.Logger, target string) (*Result, error) {
	page, err := a.fetch(ctx, target, scrape.FetchOptions{})
	if err != nil {
		return nil, a.fail(StageFetch, target, err)
	}

	fields, err := a.extract(ctx, target, page)
	if err != nil {
		return nil, a.fail(StageExtraction, target, err)
	}
	log.Debug("fields extracted",
		zap.String("job_title", fields.JobTitle),
		zap.Int("required_skills", len(fields.RequiredSkills)),
	)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	analysis, err := a.deps.Reasoner.Analyze(callCtx, AnalysisInput{
		URL:     target,
		Fields:  fields,
		Page:    page,
		Profile: a.deps.Profile,
	})
	if err != nil {
		return nil, a.fail(StageAnalysis, target, err)
	}

	completeFromFields(analysis, fields)
	fillSkillOverlap(analysis, fields, a.deps.Profile)
	analysis.Score(a.weights)
	if err := analysis.Validate(); err != nil {
		return nil, a.fail(StageAnalysis, target, fmt.Errorf("invalid analysis: %w", err))
	}

	log.Info("job posting analyzed",
		zap.Int("match_score", analysis.MatchScore),
		zap.Int("matching_skills", len(analysis.MatchingSkills)),
		zap.Int("missing_skills", len(analysis.MissingSkills)),
	)

	return &Result{
		URL:          target,
		IsJobPosting: true,
		Title:        firstNonEmpty(page.Title, analysis.JobTitle, defaultJobTitle),
		Structured:   fields,
		Analysis:     analysis,
		Metadata:     page.Metadata,
	}, nil
}

func (a *Analyzer) fetch(ctx context.Context, target string, opts scrape.FetchOptions) (*scrape.Page, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	page, err := a.deps.Fetcher.Fetch(callCtx, target, opts)
	if err != nil {
		return nil, err
	}
	if page == nil || strings.TrimSpace(page.Text) == "" {
		return nil, &scrape.FetchError{URL: target, Message: "page has no readable content"}
	}
	return page, nil
}

func (a *Analyzer) extract(ctx context.Context, target string, page *scrape.Page) (*JobFields, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.deps.Extractor.Extract(callCtx, target, page, JobPostingSchema())
	if err != nil {
		return nil, err
	}
	return DecodeFields(raw)
}

func (a *Analyzer) fail(stage Stage, target string, err error) error {
	stageErr := &StageError{Stage: stage, URL: target, Cause: err}
	a.logger.Warn("job analysis failed",
		zap.String(logger.FieldURL, target),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	if a.deps.OnStageError != nil {
		a.deps.OnStageError(stageErr)
	}
	return stageErr
}

// ValidateURL accepts absolute http and https URLs and returns them
// normalised.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: no url provided", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host: %q", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

func completeFromFields(a *Analysis, f *JobFields) {
	if f == nil {
		return
	}
	a.JobTitle = firstNonEmpty(a.JobTitle, f.JobTitle)
	a.Company = firstNonEmpty(a.Company, f.Company)
	a.Location = firstNonEmpty(a.Location, f.Location)
	a.ExperienceLevel = firstNonEmpty(a.ExperienceLevel, f.ExperienceLevel)
	if len(a.KeyResponsibilities) == 0 {
		a.KeyResponsibilities = append([]string(nil), f.KeyResponsibilities...)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
