package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvConfig          = "CHEMSYNC_CONFIG"
	EnvInventoryAPIKey = "CHEMINVENTORY_API_KEY"
	EnvInventoryURL    = "CHEMINVENTORY_API_URL"
	EnvRegistryAPIKey  = "DATALAB_API_KEY"
	EnvRegistryURL     = "DATALAB_API_URL"
)

// defaultDotEnv is read from the working directory when no --env-file is
// given. Its absence is not an error.
const defaultDotEnv = ".env"

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath      string // CHEMSYNC_CONFIG: override config file path
	InventoryAPIKey string // CHEMINVENTORY_API_KEY
	InventoryURL    string // CHEMINVENTORY_API_URL
	RegistryAPIKey  string // DATALAB_API_KEY
	RegistryURL     string // DATALAB_API_URL
}

// LoadDotEnv seeds the process environment from a .env file. Variables
// already set in the environment win over the file. With path empty the
// default ./.env is tried and silently skipped when missing; an explicit
// path must exist.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify a Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:      os.Getenv(EnvConfig),
		InventoryAPIKey: os.Getenv(EnvInventoryAPIKey),
		InventoryURL:    os.Getenv(EnvInventoryURL),
		RegistryAPIKey:  os.Getenv(EnvRegistryAPIKey),
		RegistryURL:     os.Getenv(EnvRegistryURL),
	}
}
