package config

import "fmt"

// ConfigValidator validates a PipelineConfigSpec's cross-field invariants,
// collecting errors and warnings rather than failing on the first problem.
type ConfigValidator struct {
	spec   *PipelineConfigSpec
	errors []error
	warns  []string
}

// NewConfigValidator creates a validator for spec.
func NewConfigValidator(spec *PipelineConfigSpec) *ConfigValidator {
	return &ConfigValidator{
		spec:   spec,
		errors: make([]error, 0),
		warns:  make([]string, 0),
	}
}

// Validate checks every cross-field invariant named in the configuration's
// data model and returns a single aggregated error if any failed.
func (v *ConfigValidator) Validate() error {
	v.validateJitter()
	v.validatePlayback()
	v.validateChunk()
	v.validateUpstream()

	if len(v.errors) > 0 {
		return fmt.Errorf("configuration validation failed with %d errors: %v", len(v.errors), v.errors)
	}
	return nil
}

// GetWarnings returns all validation warnings accumulated during Validate.
func (v *ConfigValidator) GetWarnings() []string {
	return v.warns
}

func (v *ConfigValidator) validateJitter() {
	j := v.spec.Jitter
	if !(j.MinMs <= j.TargetMs && j.TargetMs <= j.MaxMs) {
		v.errors = append(v.errors, fmt.Errorf(
			"jitter.min_ms (%d) <= jitter.target_ms (%d) <= jitter.max_ms (%d) does not hold",
			j.MinMs, j.TargetMs, j.MaxMs))
	}
	if j.MinMs <= 0 {
		v.errors = append(v.errors, fmt.Errorf("jitter.min_ms must be positive, got %d", j.MinMs))
	}
}

func (v *ConfigValidator) validatePlayback() {
	p := v.spec.Playback
	if !(p.MinRate <= 1.0 && 1.0 <= p.MaxRate) {
		v.errors = append(v.errors, fmt.Errorf(
			"playback.min_rate (%v) <= 1.0 <= playback.max_rate (%v) does not hold",
			p.MinRate, p.MaxRate))
	}
	if !(p.LowWatermark < p.HighWatermark) {
		v.errors = append(v.errors, fmt.Errorf(
			"playback.low_watermark (%v) must be less than playback.high_watermark (%v)",
			p.LowWatermark, p.HighWatermark))
	}
	if p.CrossfadeMs < 0 {
		v.errors = append(v.errors, fmt.Errorf("playback.crossfade_ms must not be negative, got %d", p.CrossfadeMs))
	}
	if p.CrossfadeMs > 100 {
		v.warns = append(v.warns, "playback.crossfade_ms is unusually large (>100ms)")
	}
}

func (v *ConfigValidator) validateChunk() {
	c := v.spec.Chunk
	if !(c.MinMs <= c.DefaultMs && c.DefaultMs <= c.MaxMs) {
		v.errors = append(v.errors, fmt.Errorf(
			"chunk.min_ms (%d) <= chunk.default_ms (%d) <= chunk.max_ms (%d) does not hold",
			c.MinMs, c.DefaultMs, c.MaxMs))
	}
}

func (v *ConfigValidator) validateUpstream() {
	u := v.spec.Upstream
	if u.BaseURL == "" {
		v.errors = append(v.errors, fmt.Errorf("upstream.base_url is required"))
	}
	if u.APIKey == "" {
		v.warns = append(v.warns, "upstream.api_key is empty")
	}
}
