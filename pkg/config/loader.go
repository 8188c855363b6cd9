package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a PipelineConfig from a YAML file: structural validation
// against the embedded JSON Schema first (unknown keys are a hard error),
// strict unmarshal second, defaults third, semantic invariant validation
// last.
func Load(filename string) (*PipelineConfigSpec, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes runs the same pipeline as Load against in-memory YAML, useful
// for configuration supplied inline rather than from a file.
func LoadBytes(data []byte) (*PipelineConfigSpec, error) {
	if err := ValidatePipelineConfig(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var manifest PipelineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&manifest.Spec)

	validator := NewConfigValidator(&manifest.Spec)
	if err := validator.Validate(); err != nil {
		return nil, err
	}

	return &manifest.Spec, nil
}
