package jobs

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// JobFields are the structured fields pulled out of a posting. Every field is
// optional.
type JobFields struct {
	JobTitle            string   `json:"jobTitle,omitempty" mapstructure:"jobTitle"`
	Company             string   `json:"company,omitempty" mapstructure:"company"`
	Location            string   `json:"location,omitempty" mapstructure:"location"`
	ExperienceLevel     string   `json:"experienceLevel,omitempty" mapstructure:"experienceLevel"`
	RequiredSkills      []string `json:"requiredSkills,omitempty" mapstructure:"requiredSkills"`
	KeyResponsibilities []string `json:"keyResponsibilities,omitempty" mapstructure:"keyResponsibilities"`
	Salary              string   `json:"salary,omitempty" mapstructure:"salary"`
	Benefits            []string `json:"benefits,omitempty" mapstructure:"benefits"`
	ApplicationDeadline string   `json:"applicationDeadline,omitempty" mapstructure:"applicationDeadline"`
	JobType             string   `json:"jobType,omitempty" mapstructure:"jobType"`
	RemoteOptions       string   `json:"remoteOptions,omitempty" mapstructure:"remoteOptions"`
}

// JobPostingSchema is the extraction schema sent to the extraction service.
func JobPostingSchema() map[string]any {
	str := map[string]any{"type": "string"}
	list := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"jobTitle":            str,
			"company":             str,
			"location":            str,
			"experienceLevel":     str,
			"requiredSkills":      list,
			"keyResponsibilities": list,
			"salary":              str,
			"benefits":            list,
			"applicationDeadline": str,
			"jobType":             str,
			"remoteOptions":       str,
		},
	}
}

// DecodeFields converts a loosely typed extraction result into JobFields.
// Numbers become strings and single strings become one-element lists.
func DecodeFields(raw map[string]any) (*JobFields, error) {
	var fields JobFields
	if len(raw) == 0 {
		return &fields, nil
	}

	cfg := &mapstructure.DecoderConfig{
		Result:           &fields,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create fields decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode job fields: %w", err)
	}
	return &fields, nil
}
