// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for chemsync. Values come from a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags). API keys are never read from the config file; they come from the
// environment, optionally seeded from a .env file.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Inventory InventoryConfig `toml:"inventory"`
	Registry  RegistryConfig  `toml:"registry"`
	Sync      SyncConfig      `toml:"sync"`
	Logging   LoggingConfig   `toml:"logging"`
	Network   NetworkConfig   `toml:"network"`
	State     StateConfig     `toml:"state"`
}

// InventoryConfig locates the ChemInventory API.
type InventoryConfig struct {
	APIURL string `toml:"api_url"`
}

// RegistryConfig locates the datalab API and says where created items go.
type RegistryConfig struct {
	APIURL     string `toml:"api_url"`
	Collection string `toml:"collection"`
}

// SyncConfig controls run behavior.
type SyncConfig struct {
	DryRun            bool     `toml:"dry_run"`
	SkipFiles         bool     `toml:"skip_files"`
	ImportOnly        bool     `toml:"import_only"`
	AttachmentTypes   []string `toml:"attachment_types"`
	FallbackLocation  string   `toml:"fallback_location"`
	AttachmentWorkers int      `toml:"attachment_workers"`
	PollInterval      string   `toml:"poll_interval"`
}

// LoggingConfig controls log output level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior shared by both services.
type NetworkConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	UserAgent      string `toml:"user_agent"`
}

// StateConfig locates files chemsync writes outside the two services.
// An empty metrics_textfile disables metrics output.
type StateConfig struct {
	RunLog          string `toml:"run_log"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	DryRun     *bool  // --dry-run flag
	SkipFiles  *bool  // --skip-files flag
	ImportOnly *bool  // --import-only flag
}

// PollIntervalDuration returns the parsed poll interval. Call only on a
// validated config.
func (c *Config) PollIntervalDuration() time.Duration {
	return mustDuration(c.Sync.PollInterval)
}

// RequestTimeoutDuration returns the parsed total request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return mustDuration(c.Network.RequestTimeout)
}

// ReadTimeoutDuration returns the parsed response header timeout.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return mustDuration(c.Network.ReadTimeout)
}

// mustDuration parses a validated duration; invalid input yields zero.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}
