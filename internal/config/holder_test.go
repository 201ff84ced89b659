package config

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_Update(t *testing.T) {
	cfg1 := DefaultConfig()
	h := NewHolder(cfg1, "/etc/chemsync/config.toml")
	assert.Equal(t, "/etc/chemsync/config.toml", h.Path())

	cfg2 := DefaultConfig()
	cfg2.Sync.PollInterval = "30m"
	h.Update(cfg2)

	assert.Same(t, cfg2, h.Config())
}

func TestHolder_Reload(t *testing.T) {
	path := writeTestConfig(t, "[sync]\nfallback_location = \"First\"\n")
	h := NewHolder(DefaultConfig(), path)

	cfg, err := h.Reload(EnvOverrides{}, CLIOverrides{DryRun: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "First", cfg.Sync.FallbackLocation)
	assert.True(t, cfg.Sync.DryRun, "CLI overrides survive a reload")
	assert.Same(t, cfg, h.Config())

	require.NoError(t, os.WriteFile(path, []byte("[sync]\nattachment_workers = -1\n"), 0o600))

	_, err = h.Reload(EnvOverrides{}, CLIOverrides{})
	require.Error(t, err)
	assert.Same(t, cfg, h.Config(), "a broken file keeps the previous config")
}

func TestHolder_ConcurrentReadWrite(t *testing.T) {
	h := NewHolder(DefaultConfig(), "/tmp/config.toml")

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				assert.NotNil(t, h.Config())
			}
		}()
	}

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				h.Update(DefaultConfig())
			}
		}()
	}

	wg.Wait()
}
