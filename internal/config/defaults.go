package config

// Default values for configuration options: layer 0 of the override chain.
const (
	defaultInventoryURL      = "https://app.cheminventory.net/api"
	defaultFallbackLocation  = "Unassigned"
	defaultAttachmentWorkers = 4
	defaultPollInterval      = "15m"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultRequestTimeout    = "60s"
	defaultReadTimeout       = "5s"
	defaultMaxRetries        = 3
)

// DefaultAttachmentTypes returns the MIME types of linked files copied when
// the config names none. A fresh slice is returned on every call.
func DefaultAttachmentTypes() []string {
	return []string{"application/pdf"}
}

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their
// defaults. The registry URL has no default: every datalab deployment is
// self-hosted.
func DefaultConfig() *Config {
	return &Config{
		Inventory: InventoryConfig{APIURL: defaultInventoryURL},
		Sync: SyncConfig{
			AttachmentTypes:   DefaultAttachmentTypes(),
			FallbackLocation:  defaultFallbackLocation,
			AttachmentWorkers: defaultAttachmentWorkers,
			PollInterval:      defaultPollInterval,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			RequestTimeout: defaultRequestTimeout,
			ReadTimeout:    defaultReadTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		State: StateConfig{RunLog: DefaultRunLogPath()},
	}
}

