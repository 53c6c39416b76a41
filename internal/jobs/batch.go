package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
)

// URLAnalyzer is satisfied by *Analyzer.
type URLAnalyzer interface {
	Analyze(ctx context.Context, url string) (*Result, error)
}

// Failure records a URL that could not be analyzed.
type Failure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Results collects the outcome of a batch run.
type Results struct {
	Items  []*Result `json:"items"`
	Failed []Failure `json:"failed,omitempty"`
}

// AnalyzeAll runs a over urls with at most concurrency calls in flight. A
// failed URL does not cancel the others. Items and Failed keep input order.
func AnalyzeAll(ctx context.Context, a URLAnalyzer, urls []string, concurrency int) *Results {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*Result, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, url := range urls {
		g.Go(func() error {
			results[i], errs[i] = a.Analyze(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	out := &Results{}
	for i, url := range urls {
		if errs[i] != nil {
			out.Failed = append(out.Failed, Failure{URL: url, Error: errs[i].Error()})
			continue
		}
		out.Items = append(out.Items, results[i])
	}
	return out
}

func (r *Results) Len() int {
	return len(r.Items)
}

// Postings returns the job-posting results, best match first.
func (r *Results) Postings() []*Result {
	var postings []*Result
	for _, item := range r.Items {
		if item.IsJobPosting && item.Analysis != nil {
			postings = append(postings, item)
		}
	}
	sort.SliceStable(postings, func(i, j int) bool {
		return postings[i].Analysis.MatchScore > postings[j].Analysis.MatchScore
	})
	return postings
}

// ReportByCompany groups job postings by company.
func (r *Results) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range r.Postings() {
		company := firstNonEmpty(item.Analysis.Company, "unknown")
		report[company] = append(report[company], map[string]string{
			"title":       item.Title,
			"url":         item.URL,
			"location":    item.Analysis.Location,
			"match score": fmt.Sprintf("%d", item.Analysis.MatchScore),
		})
	}
	return report
}

func (r *Results) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "job_analysis_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
