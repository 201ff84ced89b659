package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Resolved is the fully merged configuration plus the secrets and the
// config path it was loaded from.
type Resolved struct {
	*Config

	ConfigPath      string
	InventoryAPIKey string
	RegistryAPIKey  string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values, so chemsync runs with nothing
// but environment variables.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file path: CLI > env > platform default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	path := ConfigPath(env, cli)

	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	Apply(cfg, env, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &Resolved{
		Config:          cfg,
		ConfigPath:      path,
		InventoryAPIKey: env.InventoryAPIKey,
		RegistryAPIKey:  env.RegistryAPIKey,
	}, nil
}

// Apply layers environment and CLI overrides onto cfg in place. Watch mode
// reuses it when the config file is reloaded.
func Apply(cfg *Config, env EnvOverrides, cli CLIOverrides) {
	if env.InventoryURL != "" {
		cfg.Inventory.APIURL = env.InventoryURL
	}

	if env.RegistryURL != "" {
		cfg.Registry.APIURL = env.RegistryURL
	}

	if cli.DryRun != nil {
		cfg.Sync.DryRun = *cli.DryRun
	}

	if cli.SkipFiles != nil {
		cfg.Sync.SkipFiles = *cli.SkipFiles
	}

	if cli.ImportOnly != nil {
		cfg.Sync.ImportOnly = *cli.ImportOnly
	}
}

// RequireCredentials checks that everything needed to reach both services
// is present. Commands that only read local state skip it.
func (r *Resolved) RequireCredentials() error {
	var errs []error

	if r.InventoryAPIKey == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvInventoryAPIKey))
	}

	if r.RegistryAPIKey == "" {
		errs = append(errs, fmt.Errorf("%s is not set", EnvRegistryAPIKey))
	}

	if r.Registry.APIURL == "" {
		errs = append(errs, fmt.Errorf("registry api_url is not set (config [registry] api_url or %s)", EnvRegistryURL))
	}

	return errors.Join(errs...)
}
