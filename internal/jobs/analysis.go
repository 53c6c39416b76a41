package jobs

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// SubScores are the per-criterion ratings produced by the reasoning step.
type SubScores struct {
	Skills     float64 `json:"skills" validate:"gte=0,lte=100"`
	Experience float64 `json:"experience" validate:"gte=0,lte=100"`
	Projects   float64 `json:"projects" validate:"gte=0,lte=100"`
	Other      float64 `json:"other" validate:"gte=0,lte=100"`
}

// Weights define how sub-scores combine into the match score.
type Weights struct {
	Skills     float64
	Experience float64
	Projects   float64
	Other      float64
}

// DefaultWeights: skills 40%, experience 30%, projects 20%, other 10%.
var DefaultWeights = Weights{Skills: 0.4, Experience: 0.3, Projects: 0.2, Other: 0.1}

// Composite is the weighted mean of s, clamped to [0, 100]. Weights that do
// not sum to one are normalised; all-zero weights fall back to DefaultWeights.
func (w Weights) Composite(s SubScores) float64 {
	total := w.Skills + w.Experience + w.Projects + w.Other
	if total <= 0 {
		w = DefaultWeights
		total = 1
	}

	score := (w.Skills*clamp(s.Skills) +
		w.Experience*clamp(s.Experience) +
		w.Projects*clamp(s.Projects) +
		w.Other*clamp(s.Other)) / total

	return clamp(score)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

type RelevantProject struct {
	Name      string `json:"name" validate:"required"`
	Relevance string `json:"relevance"`
}

// Analysis is the structured result of matching one posting against the
// profile.
type Analysis struct {
	JobTitle            string            `json:"jobTitle"`
	Company             string            `json:"company"`
	Location            string            `json:"location"`
	ExperienceLevel     string            `json:"experienceLevel"`
	RequiredSkills      []string          `json:"requiredSkills"`
	MatchingSkills      []string          `json:"matchingSkills"`
	KeyResponsibilities []string          `json:"keyResponsibilities"`
	RelevantProjects    []RelevantProject `json:"relevantProjects" validate:"dive"`
	RelevantExperience  []string          `json:"relevantExperience"`
	MatchScore          int               `json:"matchScore" validate:"gte=0,lte=100"`
	SubScores           SubScores         `json:"subScores"`
	Summary             string            `json:"summary" validate:"required"`
	TalkingPoints       []string          `json:"talkingPoints"`
	MissingSkills       []string          `json:"missingSkills,omitempty"`
	Recommendations     []string          `json:"recommendations,omitempty"`
}

// Validate checks the struct-level invariants of a.
func (a *Analysis) Validate() error {
	return validator.New().Struct(a)
}

// Score sets MatchScore from the sub-scores using w.
func (a *Analysis) Score(w Weights) {
	a.MatchScore = int(math.Round(w.Composite(a.SubScores)))
}

// decodeAnalysis maps a schema-valid reasoning document onto Analysis.
// A model-supplied matchScore is ignored.
func decodeAnalysis(doc map[string]any) (*Analysis, error) {
	var a Analysis
	cfg := &mapstructure.DecoderConfig{
		Result:           &a,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create analysis decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	a.MatchScore = 0
	return &a, nil
}
