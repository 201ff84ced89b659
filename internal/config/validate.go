package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minAttachmentWorkers = 1
	maxAttachmentWorkers = 32
	maxRetriesLimit      = 10
	minPollInterval      = 1 * time.Minute
	minRequestTimeout    = 1 * time.Second
	minReadTimeout       = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found,
// so a broken file can be fixed in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateURL("inventory.api_url", cfg.Inventory.APIURL, true)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateURL(field, value string, required bool) []error {
	if value == "" {
		if required {
			return []error{fmt.Errorf("%s: must not be empty", field)}
		}

		return nil
	}

	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid URL %q: %w", field, value, err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("%s: must be an http or https URL, got %q", field, value)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("%s: missing host in %q", field, value)}
	}

	return nil
}

func validateRegistry(r *RegistryConfig) []error {
	var errs []error

	// The URL may still arrive from the environment; RequireCredentials
	// enforces presence.
	errs = append(errs, validateURL("registry.api_url", r.APIURL, false)...)

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if s.AttachmentWorkers < minAttachmentWorkers || s.AttachmentWorkers > maxAttachmentWorkers {
		errs = append(errs, fmt.Errorf("sync.attachment_workers: must be between %d and %d, got %d",
			minAttachmentWorkers, maxAttachmentWorkers, s.AttachmentWorkers))
	}

	if s.FallbackLocation == "" {
		errs = append(errs, errors.New("sync.fallback_location: must not be empty"))
	}

	if len(s.AttachmentTypes) == 0 {
		errs = append(errs, errors.New("sync.attachment_types: must list at least one MIME type"))
	}

	for i, t := range s.AttachmentTypes {
		if t == "" {
			errs = append(errs, fmt.Errorf("sync.attachment_types[%d]: must not be empty", i))
		}
	}

	errs = append(errs, validateDurationMin("sync.poll_interval", s.PollInterval, minPollInterval)...)

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.request_timeout", n.RequestTimeout, minRequestTimeout)...)
	errs = append(errs, validateDurationMin("network.read_timeout", n.ReadTimeout, minReadTimeout)...)

	if n.MaxRetries < 0 || n.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("network.max_retries: must be between 0 and %d, got %d",
			maxRetriesLimit, n.MaxRetries))
	}

	return errs
}
