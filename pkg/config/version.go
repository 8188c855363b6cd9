package config

// Version constants are the single source of truth for config schema
// versioning across the codebase.
const (
	// APIVersion is the Kubernetes-style API version for pipeline configs.
	APIVersion = "streamcore.callbridge.io/v1alpha1"

	// SchemaVersion is the version string used in schema URLs and paths.
	SchemaVersion = "v1alpha1"
)
