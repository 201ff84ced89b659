//go:build e2e

// Package e2e runs the chemsync binary against live ChemInventory and
// datalab instances. Credentials come from the environment or a .env file
// at the module root; tests skip when they are absent. Only read-only
// commands and dry runs are exercised.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	root := findModuleRoot()

	// Missing .env is fine; CI sets the variables directly.
	_ = godotenv.Load(filepath.Join(root, ".env"))

	tmpDir, err := os.MkdirTemp("", "chemsync-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "chemsync")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// findModuleRoot walks up from the current dir to find go.mod.
func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ".."
		}

		dir = parent
	}
}

func requireCredentials(t *testing.T) {
	t.Helper()

	for _, key := range []string{"CHEMINVENTORY_API_KEY", "DATALAB_API_KEY", "DATALAB_API_URL"} {
		if os.Getenv(key) == "" {
			t.Skipf("%s not set", key)
		}
	}
}

// runCLI runs the binary with an isolated config and run log.
func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf("[state]\nrun_log = %q\n", filepath.Join(dir, "runs.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	fullArgs := append([]string{"--config", cfgPath, "--env-file", os.DevNull}, args...)
	cmd := exec.Command(binaryPath, fullArgs...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	t.Logf("chemsync %v (%s)\nstderr: %s", args, time.Since(start).Round(time.Millisecond), stderr.String())
	require.NoError(t, err)

	return stdout.String(), stderr.String()
}

func TestWhoami(t *testing.T) {
	requireCredentials(t)

	stdout, _ := runCLI(t, "whoami", "--output", "json")

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.NotZero(t, res["inventory_number"])
	assert.Equal(t, os.Getenv("DATALAB_API_URL"), res["registry_url"])
}

func TestSyncDryRun(t *testing.T) {
	requireCredentials(t)

	stdout, _ := runCLI(t, "sync", "--dry-run", "--skip-files", "--output", "json")

	var report struct {
		DryRun bool   `json:"dry_run"`
		Phase  string `json:"phase"`
		Import struct {
			Seen int `json:"seen"`
		} `json:"import"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, "done", report.Phase)
}

func TestHistoryEmptyAfterDryRun(t *testing.T) {
	requireCredentials(t)

	stdout, _ := runCLI(t, "history", "--output", "json")
	assert.Equal(t, "[]\n", stdout)
}
