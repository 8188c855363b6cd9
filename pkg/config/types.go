package config

// PipelineConfig is the closed-record configuration supplied in full at
// session construction. Unknown top-level or nested keys are a hard
// schema error, never silently ignored.
type PipelineConfig struct {
	//nolint:lll // jsonschema tags require single line
	APIVersion string `yaml:"apiVersion" jsonschema:"const=streamcore.callbridge.io/v1alpha1,title=API Version"`
	//nolint:lll // jsonschema tags require single line
	Kind string `yaml:"kind" jsonschema:"const=PipelineConfig,title=Kind"`
	//nolint:lll // jsonschema tags require single line
	Spec PipelineConfigSpec `yaml:"spec" jsonschema:"title=Spec,description=Pipeline configuration specification"`
}

// PipelineConfigSpec holds every configurable option enumerated in the
// external interfaces section: upstream connection identity, jitter buffer
// bounds, playback rate/watermark/crossfade tuning, chunk size bounds,
// breathing, and pause insertion.
type PipelineConfigSpec struct {
	Upstream  UpstreamConfig  `yaml:"upstream" jsonschema:"title=Upstream"`
	Jitter    JitterConfig    `yaml:"jitter" jsonschema:"title=Jitter"`
	Playback  PlaybackConfig  `yaml:"playback" jsonschema:"title=Playback"`
	Chunk     ChunkConfig     `yaml:"chunk" jsonschema:"title=Chunk"`
	Breathing BreathingConfig `yaml:"breathing" jsonschema:"title=Breathing"`
	Pauses    PausesConfig    `yaml:"pauses" jsonschema:"title=Pauses"`
}

// UpstreamConfig identifies and authenticates the conversation service
// connection.
type UpstreamConfig struct {
	//nolint:lll // jsonschema tags require single line
	BaseURL string `yaml:"base_url" jsonschema:"title=Base URL,description=Host part of the upstream URL"`
	//nolint:lll // jsonschema tags require single line
	APIKey string `yaml:"api_key" jsonschema:"title=API Key,description=Credential supplied in the upstream URL"`
	//nolint:lll // jsonschema tags require single line
	Language string `yaml:"language" jsonschema:"title=Language,description=Language tag supplied in the upstream URL"`
}

// JitterConfig bounds the adaptive jitter buffer's target depth.
type JitterConfig struct {
	MinMs    int `yaml:"min_ms" jsonschema:"title=Min ms,default=40"`
	MaxMs    int `yaml:"max_ms" jsonschema:"title=Max ms,default=200"`
	TargetMs int `yaml:"target_ms" jsonschema:"title=Target ms,default=60"`
}

// PlaybackConfig bounds the playback controller's rate adaptation and
// crossfade window.
type PlaybackConfig struct {
	MinRate       float64 `yaml:"min_rate" jsonschema:"title=Min rate,default=0.95"`
	MaxRate       float64 `yaml:"max_rate" jsonschema:"title=Max rate,default=1.05"`
	LowWatermark  float64 `yaml:"low_watermark" jsonschema:"title=Low watermark,default=0.2"`
	HighWatermark float64 `yaml:"high_watermark" jsonschema:"title=High watermark,default=0.8"`
	CrossfadeMs   int     `yaml:"crossfade_ms" jsonschema:"title=Crossfade ms,default=20"`
}

// ChunkConfig bounds the output chunk size policy.
type ChunkConfig struct {
	MinMs     int `yaml:"min_ms" jsonschema:"title=Min ms,default=100"`
	MaxMs     int `yaml:"max_ms" jsonschema:"title=Max ms,default=1000"`
	DefaultMs int `yaml:"default_ms" jsonschema:"title=Default ms,default=200"`
}

// BreathingConfig toggles synthetic respiration insertion and its base
// intensity.
type BreathingConfig struct {
	Enabled   bool    `yaml:"enabled" jsonschema:"title=Enabled,default=true"`
	Intensity float64 `yaml:"intensity" jsonschema:"title=Intensity,default=0.3"`
}

// PausesConfig toggles punctuation-driven pause insertion and its
// per-trigger duration table.
type PausesConfig struct {
	Enabled      bool           `yaml:"enabled" jsonschema:"title=Enabled,default=true"`
	DurationsMs  map[string]int `yaml:"durations_ms,omitempty" jsonschema:"title=Durations ms"`
	SpeechRate   float64        `yaml:"speech_rate" jsonschema:"title=Speech rate,default=1.0"`
	Adaptive     bool           `yaml:"adaptive" jsonschema:"title=Adaptive,default=false"`
}

// Defaults returns a PipelineConfigSpec with every field the reference
// loader's Defaults() step would fill in before invariant validation runs.
func Defaults() PipelineConfigSpec {
	return PipelineConfigSpec{
		Jitter:   JitterConfig{MinMs: 40, MaxMs: 200, TargetMs: 60},
		Playback: PlaybackConfig{MinRate: 0.95, MaxRate: 1.05, LowWatermark: 0.2, HighWatermark: 0.8, CrossfadeMs: 20},
		Chunk:    ChunkConfig{MinMs: 100, MaxMs: 1000, DefaultMs: 200},
		Breathing: BreathingConfig{
			Enabled:   true,
			Intensity: 0.3,
		},
		Pauses: PausesConfig{
			Enabled: true,
			DurationsMs: map[string]int{
				",":                 150,
				".":                 500,
				"?":                 600,
				"!":                 200,
				"sentence_boundary": 400,
			},
			SpeechRate: 1.0,
		},
	}
}

// applyDefaults fills zero-valued fields of spec from Defaults(), mirroring
// the reference loader's default-filling behavior field by field. The
// Breathing.Enabled and Pauses.Enabled booleans are not filled: an omitted
// `enabled` key stays false.
func applyDefaults(spec *PipelineConfigSpec) {
	d := Defaults()

	if spec.Jitter.MinMs == 0 {
		spec.Jitter.MinMs = d.Jitter.MinMs
	}
	if spec.Jitter.MaxMs == 0 {
		spec.Jitter.MaxMs = d.Jitter.MaxMs
	}
	if spec.Jitter.TargetMs == 0 {
		spec.Jitter.TargetMs = d.Jitter.TargetMs
	}

	if spec.Playback.MinRate == 0 {
		spec.Playback.MinRate = d.Playback.MinRate
	}
	if spec.Playback.MaxRate == 0 {
		spec.Playback.MaxRate = d.Playback.MaxRate
	}
	if spec.Playback.LowWatermark == 0 {
		spec.Playback.LowWatermark = d.Playback.LowWatermark
	}
	if spec.Playback.HighWatermark == 0 {
		spec.Playback.HighWatermark = d.Playback.HighWatermark
	}
	if spec.Playback.CrossfadeMs == 0 {
		spec.Playback.CrossfadeMs = d.Playback.CrossfadeMs
	}

	if spec.Chunk.MinMs == 0 {
		spec.Chunk.MinMs = d.Chunk.MinMs
	}
	if spec.Chunk.MaxMs == 0 {
		spec.Chunk.MaxMs = d.Chunk.MaxMs
	}
	if spec.Chunk.DefaultMs == 0 {
		spec.Chunk.DefaultMs = d.Chunk.DefaultMs
	}

	if spec.Breathing.Intensity == 0 {
		spec.Breathing.Intensity = d.Breathing.Intensity
	}

	if spec.Pauses.DurationsMs == nil {
		spec.Pauses.DurationsMs = d.Pauses.DurationsMs
	}
	if spec.Pauses.SpeechRate == 0 {
		spec.Pauses.SpeechRate = d.Pauses.SpeechRate
	}
}
