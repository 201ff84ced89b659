package config

import "sync"

// Holder gives watch mode race-free access to a config that is replaced
// when the file changes on disk. The file path never changes.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder creates a Holder with the initial config and config file path.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Config returns the current config snapshot.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Update replaces the config.
func (h *Holder) Update(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = cfg
}

// Reload re-reads the config file, applies env and CLI overrides, and
// swaps it in. On any error the current config is kept and the error is
// returned.
func (h *Holder) Reload(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(h.path)
	if err != nil {
		return nil, err
	}

	Apply(cfg, env, cli)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	h.Update(cfg)

	return cfg, nil
}
