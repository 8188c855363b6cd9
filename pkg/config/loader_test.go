package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_ValidConfigAppliesDefaults(t *testing.T) {
	spec, err := LoadBytes([]byte(`
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  upstream:
    base_url: wss://conversation.example.com/ws
    api_key: secret
    language: en-US
  jitter: {}
  playback: {}
  chunk: {}
  breathing: {}
  pauses: {}
`))
	require.NoError(t, err)
	assert.Equal(t, 40, spec.Jitter.MinMs)
	assert.Equal(t, 200, spec.Jitter.MaxMs)
	assert.Equal(t, 0.95, spec.Playback.MinRate)
	assert.Equal(t, 1000, spec.Chunk.MaxMs)
	assert.Equal(t, 500, spec.Pauses.DurationsMs["."])
}

func TestLoadBytes_InvariantViolationFails(t *testing.T) {
	_, err := LoadBytes([]byte(`
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  upstream:
    base_url: wss://conversation.example.com/ws
  jitter: {min_ms: 100, max_ms: 50, target_ms: 60}
  playback: {}
  chunk: {}
  breathing: {}
  pauses: {}
`))
	require.Error(t, err)
}

func TestLoadBytes_SchemaRejectsUnknownField(t *testing.T) {
	_, err := LoadBytes([]byte(`
apiVersion: streamcore.callbridge.io/v1alpha1
kind: PipelineConfig
spec:
  upstream:
    base_url: wss://conversation.example.com/ws
  jitter: {}
  playback: {}
  chunk: {}
  breathing: {}
  pauses: {}
  bogus: true
`))
	require.Error(t, err)
}
