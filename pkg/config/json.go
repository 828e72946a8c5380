package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSON loads configuration from a JSON file.
func LoadJSON(path string, target *Config) error {
	// #nosec G304 -- path is provided by the caller; validate untrusted inputs upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
