package config

// Config represents the full forge configuration.
type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// Document store backend selection and settings
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Generative endpoint settings
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Autosave / snapshot settings
	Autosave AutosaveConfig `yaml:"autosave" mapstructure:"autosave"`

	// API server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Project-specific settings (only in project config)
	Project ProjectConfig `yaml:"project" mapstructure:"project"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "postgres", "rest".
	Backend     string `yaml:"backend" mapstructure:"backend"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	RESTBaseURL string `yaml:"rest_base_url" mapstructure:"rest_base_url"`
	RESTAPIKey  string `yaml:"rest_api_key" mapstructure:"rest_api_key"`
}

// GatewayConfig configures the generative endpoints.
type GatewayConfig struct {
	ImageBaseURL  string `yaml:"image_base_url" mapstructure:"image_base_url"`
	ImageModel    string `yaml:"image_model" mapstructure:"image_model"`
	FallbackModel string `yaml:"fallback_model" mapstructure:"fallback_model"`
	ImageAPIKey   string `yaml:"image_api_key" mapstructure:"image_api_key"`
	TextBaseURL   string `yaml:"text_base_url" mapstructure:"text_base_url"`
	TextAPIKey    string `yaml:"text_api_key" mapstructure:"text_api_key"`
}

// AutosaveConfig configures the persistence synchronizer.
type AutosaveConfig struct {
	DebounceSeconds int    `yaml:"debounce_seconds" mapstructure:"debounce_seconds"`
	SnapshotPath    string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ProjectConfig holds project-specific settings.
type ProjectConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
}
