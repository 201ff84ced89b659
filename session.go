package main

import (
	"fmt"
	"log/slog"

	"github.com/tonimelisma/chemsync/internal/config"
	"github.com/tonimelisma/chemsync/internal/inventory"
	"github.com/tonimelisma/chemsync/internal/registry"
	"github.com/tonimelisma/chemsync/internal/sync"
	"github.com/tonimelisma/chemsync/internal/transport"
)

// Session holds the two API clients for one run. Both share a single HTTP
// client so connection pools and timeouts are common.
type Session struct {
	Inventory *inventory.Client
	Registry  *registry.Client
}

// userAgent is sent on every request unless the config overrides it.
func userAgent(cfg *config.Config) string {
	if cfg.Network.UserAgent != "" {
		return cfg.Network.UserAgent
	}

	return "chemsync/" + version
}

// NewSession creates both clients from a validated config and the API keys.
func NewSession(cfg *config.Config, inventoryKey, registryKey string, logger *slog.Logger) (*Session, error) {
	httpClient := transport.NewHTTPClient(cfg.RequestTimeoutDuration(), cfg.ReadTimeoutDuration())
	ua := userAgent(cfg)

	inv, err := inventory.NewClient(inventory.Config{
		BaseURL:    cfg.Inventory.APIURL,
		APIKey:     inventoryKey,
		HTTPClient: httpClient,
		MaxRetries: cfg.Network.MaxRetries,
		UserAgent:  ua,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating inventory client: %w", err)
	}

	reg, err := registry.NewClient(registry.Config{
		BaseURL:     cfg.Registry.APIURL,
		TokenSource: registry.APIKeySource(registryKey),
		HTTPClient:  httpClient,
		MaxRetries:  cfg.Network.MaxRetries,
		UserAgent:   ua,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating registry client: %w", err)
	}

	return &Session{Inventory: inv, Registry: reg}, nil
}

// NewEngine builds a reconciliation engine over the session's clients.
func (s *Session) NewEngine(cfg *config.Config, logger *slog.Logger) (*sync.Engine, error) {
	return sync.NewEngine(&sync.EngineConfig{
		Inventory:         s.Inventory,
		Registry:          s.Registry,
		Collection:        cfg.Registry.Collection,
		AttachmentTypes:   cfg.Sync.AttachmentTypes,
		FallbackLocation:  cfg.Sync.FallbackLocation,
		AttachmentWorkers: cfg.Sync.AttachmentWorkers,
		Logger:            logger,
	})
}

var (
	_ sync.InventoryService = (*inventory.Client)(nil)
	_ sync.RegistryService  = (*registry.Client)(nil)
)
