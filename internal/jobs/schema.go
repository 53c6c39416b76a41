package jobs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed data/analysis.schema.json
var analysisSchemaJSON []byte

var (
	analysisSchemaOnce sync.Once
	analysisSchema     *gojsonschema.Schema
	analysisSchemaErr  error
)

// SchemaError lists the fields of a reasoning response that broke the
// analysis schema.
type SchemaError struct {
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("analysis response does not match schema: %s", strings.Join(e.Fields, "; "))
}

// AnalysisResponseSchema returns the analysis schema as a generic document,
// suitable for a model's structured-output setting.
func AnalysisResponseSchema() map[string]any {
	var out map[string]any
	if err := json.Unmarshal(analysisSchemaJSON, &out); err != nil {
		panic(fmt.Sprintf("bundled analysis schema: %v", err))
	}
	delete(out, "$schema")
	return out
}

// ValidateAnalysisDocument checks a decoded reasoning response against the
// analysis schema.
func ValidateAnalysisDocument(doc map[string]any) error {
	analysisSchemaOnce.Do(func() {
		analysisSchema, analysisSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisSchemaJSON))
	})
	if analysisSchemaErr != nil {
		return fmt.Errorf("load analysis schema: %w", analysisSchemaErr)
	}

	result, err := analysisSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate analysis response: %w", err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{Fields: make([]string, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		schemaErr.Fields = append(schemaErr.Fields, field+": "+desc.Description())
	}
	return schemaErr
}
