package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/pipelineconfig.json
var pipelineConfigSchemaJSON []byte

const errorFormat = "  - %s"

// SchemaValidationError represents a single JSON Schema validation failure.
type SchemaValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaValidationResult contains the results of schema validation.
type SchemaValidationResult struct {
	Valid  bool
	Errors []SchemaValidationError
}

// ValidateWithSchema validates YAML data against the embedded PipelineConfig
// JSON Schema, unknown keys included: the schema sets additionalProperties
// to false at every level, so an unrecognized field is a hard error here
// rather than being silently dropped at unmarshal time.
func ValidateWithSchema(yamlData []byte) (*SchemaValidationResult, error) {
	var data interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(pipelineConfigSchemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	validationResult := &SchemaValidationResult{
		Valid:  result.Valid(),
		Errors: make([]SchemaValidationError, 0),
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			validationResult.Errors = append(validationResult.Errors, SchemaValidationError{
				Field:       e.Field(),
				Description: e.Description(),
				Value:       e.Value(),
			})
		}
	}
	return validationResult, nil
}

// ValidatePipelineConfig validates raw YAML against the embedded schema,
// returning a single aggregated error naming every schema violation.
func ValidatePipelineConfig(yamlData []byte) error {
	result, err := ValidateWithSchema(yamlData)
	if err != nil {
		return err
	}
	if !result.Valid {
		var messages []string
		for _, e := range result.Errors {
			messages = append(messages, fmt.Sprintf(errorFormat, e.Error()))
		}
		return fmt.Errorf("pipeline configuration does not match schema:\n%s", strings.Join(messages, "\n"))
	}
	return nil
}
