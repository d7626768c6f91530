package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "~/.forge/forge.db",
		},
		Gateway: GatewayConfig{
			ImageBaseURL:  "https://api.marketforge.dev",
			ImageModel:    "portrait-xl",
			FallbackModel: "portrait-lite",
			TextBaseURL:   "https://api.marketforge.dev",
		},
		Autosave: AutosaveConfig{
			DebounceSeconds: 3,
			SnapshotPath:    "~/.forge/session.json",
			TimeoutSeconds:  10,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// WriteDefault writes the default global configuration to a file.
func WriteDefault(path string) error {
	content := `# Forge Global Configuration
version: "1"

# Document store backend: "sqlite" (embedded), "postgres" or "rest"
storage:
  backend: sqlite
  sqlite_path: ~/.forge/forge.db
  # postgres_dsn: host=localhost user=forge dbname=forge
  # rest_base_url: https://project.example.co
  # rest_api_key: set via FORGE_REST_API_KEY

# Generative endpoints
# API keys are read from FORGE_IMAGE_API_KEY / FORGE_TEXT_API_KEY when unset
gateway:
  image_base_url: https://api.marketforge.dev
  image_model: portrait-xl
  fallback_model: portrait-lite
  text_base_url: https://api.marketforge.dev

# Autosave
autosave:
  debounce_seconds: 3
  snapshot_path: ~/.forge/session.json
  timeout_seconds: 10

# API server
server:
  addr: ":8080"
`
	return os.WriteFile(path, []byte(content), 0644)
}

// Save writes the configuration as yaml.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
