package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}

func stringArray() map[string]any {
	return map[string]any{
		"type":  []string{"array", "null"},
		"items": map[string]any{"type": "string"},
	}
}

// extractionSchema checks the shape of the model output. Keys may be missing
// and unknown keys are ignored; only the types of known keys are enforced.
var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"platform_name":           nullable("string"),
		"platform_job_id":         nullable("string"),
		"url":                     nullable("string"),
		"job_title":               nullable("string"),
		"company_name":            nullable("string"),
		"location_text":           nullable("string"),
		"work_mode":               nullable("string"),
		"employment_type":         nullable("string"),
		"seniority_level":         nullable("string"),
		"domain":                  nullable("string"),
		"description_full":        nullable("string"),
		"responsibilities_text":   nullable("string"),
		"requirements_text":       nullable("string"),
		"nice_to_have_text":       nullable("string"),
		"benefits_text":           nullable("string"),
		"years_of_experience_min": nullable("integer"),
		"years_of_experience_max": nullable("integer"),
		"education_level":         nullable("string"),
		"salary_min":              nullable("number"),
		"salary_max":              nullable("number"),
		"salary_currency":         nullable("string"),
		"salary_period":           nullable("string"),
		"skills_required":         stringArray(),
		"skills_nice_to_have":     stringArray(),
		"tags":                    stringArray(),
		"posted_at":               nullable("string"),
	},
}

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		b, err := json.Marshal(extractionSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("extraction.json")
	})
	return compiledSchema, compileErr
}

// validateExtraction checks data against the extraction schema
func validateExtraction(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
