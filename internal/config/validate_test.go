package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty inventory url", func(c *Config) { c.Inventory.APIURL = "" }, "inventory.api_url: must not be empty"},
		{"ftp inventory url", func(c *Config) { c.Inventory.APIURL = "ftp://example.org" }, "must be an http or https URL"},
		{"missing host", func(c *Config) { c.Registry.APIURL = "https://" }, "registry.api_url: missing host"},
		{"too many workers", func(c *Config) { c.Sync.AttachmentWorkers = 33 }, "sync.attachment_workers"},
		{"empty fallback", func(c *Config) { c.Sync.FallbackLocation = "" }, "sync.fallback_location"},
		{"no attachment types", func(c *Config) { c.Sync.AttachmentTypes = nil }, "sync.attachment_types: must list at least one"},
		{"blank attachment type", func(c *Config) { c.Sync.AttachmentTypes = []string{"application/pdf", ""} }, "sync.attachment_types[1]"},
		{"short poll interval", func(c *Config) { c.Sync.PollInterval = "30s" }, "sync.poll_interval: must be >= 1m0s"},
		{"bad log format", func(c *Config) { c.Logging.LogFormat = "xml" }, "logging.log_format"},
		{"short read timeout", func(c *Config) { c.Network.ReadTimeout = "100ms" }, "network.read_timeout"},
		{"bad request timeout", func(c *Config) { c.Network.RequestTimeout = "forever" }, "network.request_timeout: invalid duration"},
		{"negative retries", func(c *Config) { c.Network.MaxRetries = -1 }, "network.max_retries"},
		{"too many retries", func(c *Config) { c.Network.MaxRetries = 11 }, "network.max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
