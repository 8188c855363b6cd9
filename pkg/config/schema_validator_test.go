package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPipelineYAML = `
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  upstream:
    base_url: wss://conversation.example.com/ws
    api_key: secret
    language: en-US
  jitter:
    min_ms: 40
    max_ms: 200
    target_ms: 60
  playback:
    min_rate: 0.95
    max_rate: 1.05
    low_watermark: 0.2
    high_watermark: 0.8
    crossfade_ms: 20
  chunk:
    min_ms: 100
    max_ms: 1000
    default_ms: 200
  breathing:
    enabled: true
    intensity: 0.3
  pauses:
    enabled: true
    speech_rate: 1.0
`

func TestValidatePipelineConfig_Valid(t *testing.T) {
	err := ValidatePipelineConfig([]byte(validPipelineYAML))
	require.NoError(t, err)
}

func TestValidatePipelineConfig_UnknownTopLevelKeyRejected(t *testing.T) {
	bad := validPipelineYAML + "\nextraTopLevelField: true\n"
	err := ValidatePipelineConfig([]byte(bad))
	assert.Error(t, err)
}

func TestValidatePipelineConfig_UnknownNestedKeyRejected(t *testing.T) {
	bad := `
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  upstream:
    base_url: wss://conversation.example.com/ws
    api_key: secret
    language: en-US
    unexpected_field: oops
  jitter: {min_ms: 40, max_ms: 200, target_ms: 60}
  playback: {min_rate: 0.95, max_rate: 1.05, low_watermark: 0.2, high_watermark: 0.8, crossfade_ms: 20}
  chunk: {min_ms: 100, max_ms: 1000, default_ms: 200}
  breathing: {enabled: true, intensity: 0.3}
  pauses: {enabled: true, speech_rate: 1.0}
`
	err := ValidatePipelineConfig([]byte(bad))
	assert.Error(t, err)
}

func TestValidatePipelineConfig_WrongKindRejected(t *testing.T) {
	bad := `
apiVersion: streamcore.callbridge.io/v1alpha1
kind: SomethingElse
spec: {}
`
	err := ValidatePipelineConfig([]byte(bad))
	assert.Error(t, err)
}

func TestValidatePipelineConfig_MissingRequiredFieldRejected(t *testing.T) {
	bad := `
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  jitter: {min_ms: 40, max_ms: 200, target_ms: 60}
  playback: {min_rate: 0.95, max_rate: 1.05, low_watermark: 0.2, high_watermark: 0.8, crossfade_ms: 20}
  chunk: {min_ms: 100, max_ms: 1000, default_ms: 200}
  breathing: {enabled: true, intensity: 0.3}
  pauses: {enabled: true, speech_rate: 1.0}
`
	err := ValidatePipelineConfig([]byte(bad))
	assert.Error(t, err)
}
