package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"inventory": {"api_url"},
	"registry":  {"api_url", "collection"},
	"sync": {
		"dry_run", "skip_files", "import_only", "attachment_types",
		"fallback_location", "attachment_workers", "poll_interval",
	},
	"logging": {"log_level", "log_format"},
	"network": {"request_timeout", "read_timeout", "max_retries", "user_agent"},
	"state":   {"run_log", "metrics_textfile"},
}

// knownSections is the sorted section list for Levenshtein matching.
var knownSections = slices.Sorted(maps.Keys(knownKeys))

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key. API keys get
// a dedicated message because they must come from the environment.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	candidates, ok := knownKeys[section]
	if !ok {
		if suggestion := closestMatch(section, knownSections); suggestion != "" {
			return fmt.Errorf("unknown config section %q; did you mean %q?", key.String(), suggestion)
		}

		return fmt.Errorf("unknown config section %q", key.String())
	}

	if len(key) < 2 {
		return fmt.Errorf("config key %q must be a table", section)
	}

	field := key[1]

	if strings.Contains(field, "api_key") || strings.Contains(field, "token") {
		return fmt.Errorf("config key %q: secrets are read from the environment (%s, %s), not the config file",
			key.String(), EnvInventoryAPIKey, EnvRegistryAPIKey)
	}

	if suggestion := closestMatch(field, candidates); suggestion != "" {
		return fmt.Errorf("unknown config key %q; did you mean %q?", key.String(), section+"."+suggestion)
	}

	return fmt.Errorf("unknown config key %q", key.String())
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
