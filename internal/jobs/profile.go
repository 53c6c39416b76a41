package jobs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

//go:embed data/profile.json
var defaultProfile []byte

// TechStack groups the candidate's skills the way the profile file does.
type TechStack struct {
	Languages  []string `json:"Languages"`
	Frameworks []string `json:"Frameworks"`
	Tools      []string `json:"Tools"`
	AI         []string `json:"AI"`
	Other      []string `json:"Other"`
}

type Role struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

type Project struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// Profile is the candidate that postings are scored against. It is read-only
// once loaded.
type Profile struct {
	Name       string    `json:"name" validate:"required"`
	Headline   string    `json:"headline"`
	Location   string    `json:"location"`
	TechStack  TechStack `json:"techStack"`
	Current    []Role    `json:"current" validate:"dive"`
	Experience []Role    `json:"experience" validate:"dive"`
	Projects   []Project `json:"projects" validate:"dive"`
}

// LoadProfile reads a profile from path. An empty path loads the bundled
// sample profile.
func LoadProfile(path string) (*Profile, error) {
	data := defaultProfile
	if strings.TrimSpace(path) != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
	}
	return ParseProfile(data)
}

func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := validator.New().Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &p, nil
}

// Skills returns every skill in the tech stack, lowercased and deduplicated.
func (p *Profile) Skills() []string {
	if p == nil {
		return nil
	}
	groups := [][]string{
		p.TechStack.Languages,
		p.TechStack.Frameworks,
		p.TechStack.Tools,
		p.TechStack.AI,
		p.TechStack.Other,
	}

	seen := make(map[string]struct{})
	var out []string
	for _, group := range groups {
		for _, skill := range group {
			s := strings.ToLower(strings.TrimSpace(skill))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// PromptPayload is the JSON document handed to the reasoning step.
func (p *Profile) PromptPayload() (string, error) {
	payload := map[string]any{
		"name":         p.Name,
		"skills":       p.Skills(),
		"currentRoles": p.Current,
		"projects":     p.Projects,
		"experience":   p.Experience,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}
	return string(data), nil
}
